package llm

import (
	"time"

	"github.com/ternarybob/arbor"
)

// Call operations reported to a CallObserver
const (
	OperationEmbed    = "embed"
	OperationGenerate = "generate"
	OperationOCR      = "ocr"
)

// CallObserver receives one notification per upstream call, after retries
type CallObserver interface {
	ObserveCall(operation, model string, duration time.Duration, err error)
}

// LogObserver writes each upstream call to the structured log
type LogObserver struct {
	logger arbor.ILogger
}

// NewLogObserver creates a CallObserver backed by the logger
func NewLogObserver(logger arbor.ILogger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) ObserveCall(operation, model string, duration time.Duration, err error) {
	if err != nil {
		o.logger.Warn().
			Str("operation", operation).
			Str("model", model).
			Dur("duration", duration).
			Err(err).
			Msg("Upstream call failed")
		return
	}
	o.logger.Debug().
		Str("operation", operation).
		Str("model", model).
		Dur("duration", duration).
		Msg("Upstream call completed")
}

// MultiObserver fans a notification out to several observers
type MultiObserver []CallObserver

func (m MultiObserver) ObserveCall(operation, model string, duration time.Duration, err error) {
	for _, o := range m {
		if o != nil {
			o.ObserveCall(operation, model, duration, err)
		}
	}
}

func observe(o CallObserver, operation, model string, start time.Time, err error) {
	if o != nil {
		o.ObserveCall(operation, model, time.Since(start), err)
	}
}
