// Package pipeline runs one generation request end to end: memo lookup, indexing,
// retrieval, prompt composition, generation and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/models"
	"github.com/ternarybob/studygen/internal/services/index"
	"github.com/ternarybob/studygen/internal/services/memo"
	"github.com/ternarybob/studygen/internal/services/prompt"
	"github.com/ternarybob/studygen/internal/services/retriever"
	"github.com/ternarybob/studygen/internal/worker"
)

// Indexer makes a document searchable and reports its content hash
type Indexer interface {
	EnsureIndexed(ctx context.Context, path, userID string) (*index.Result, error)
}

// Retriever picks the best passage of a document for a topic
type Retriever interface {
	Retrieve(ctx context.Context, documentID, topic string) (*models.Passage, error)
}

// RunObserver receives one call per finished run
type RunObserver interface {
	ObserveRun(kind, status string, duration time.Duration, cached bool)
}

// Pipeline is safe for concurrent use; each Run is sequential
type Pipeline struct {
	indexer     Indexer
	retriever   Retriever
	memo        *memo.Memoizer
	generator   interfaces.Generator
	pool        *worker.Pool
	timeout     time.Duration
	defaultUser string
	validate    *validator.Validate
	observer    RunObserver
	logger      arbor.ILogger
}

// New creates a pipeline. observer may be nil.
func New(
	indexer Indexer,
	retriever Retriever,
	memoizer *memo.Memoizer,
	generator interfaces.Generator,
	pool *worker.Pool,
	config *common.PipelineConfig,
	observer RunObserver,
	logger arbor.ILogger,
) *Pipeline {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	defaultUser := config.DefaultUser
	if defaultUser == "" {
		defaultUser = "guest"
	}

	return &Pipeline{
		indexer:     indexer,
		retriever:   retriever,
		memo:        memoizer,
		generator:   generator,
		pool:        pool,
		timeout:     common.ParseDurationOr(config.Timeout, 5*time.Minute),
		defaultUser: defaultUser,
		validate:    validate,
		observer:    observer,
		logger:      logger,
	}
}

// Run executes req and always returns a result. Errors are reported through
// Result.Status and Result.Detail.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	start := time.Now()
	runID := common.NewRunID()
	logger := p.logger.WithCorrelationId(runID)

	req.Topic = strings.TrimSpace(req.Topic)
	req.DocumentPath = strings.TrimSpace(req.DocumentPath)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Task = prompt.Canonical(req.Task)
	if req.UserID == "" {
		req.UserID = p.defaultUser
	}

	kind := "unknown"
	if req.Task != nil {
		kind = string(req.Task.Kind())
	}

	result := p.run(ctx, req, logger)
	result.RunID = runID

	duration := time.Since(start)
	if p.observer != nil {
		p.observer.ObserveRun(kind, string(result.Status), duration, result.Cached)
	}

	event := logger.Info()
	if result.Status == StatusUpstreamError {
		event = logger.Warn()
	}
	event.
		Str("kind", kind).
		Str("status", string(result.Status)).
		Str("request_id", result.RequestID).
		Str("document_id", result.DocumentID).
		Str("user_id", req.UserID).
		Bool("cached", result.Cached).
		Str("detail", result.Detail).
		Dur("elapsed", duration).
		Msg("Pipeline run finished")

	return result
}

func (p *Pipeline) run(ctx context.Context, req Request, logger arbor.ILogger) *Result {
	if err := p.validateRequest(req); err != nil {
		return &Result{Status: StatusInvalidParameter, Detail: err.Error()}
	}

	requestID := memo.RequestID(req.UserID, req.Task.Kind(), req.Topic, req.Task.Params()...)

	if !req.ForceRegenerate {
		record, err := p.memo.Lookup(ctx, requestID)
		if err != nil {
			return &Result{Status: StatusUpstreamError, RequestID: requestID, Detail: fmt.Sprintf("record lookup failed: %v", err)}
		}
		if record != nil {
			logger.Debug().Str("request_id", requestID).Msg("Returning stored generation")
			return &Result{Status: StatusOK, Text: record.Text, Markdown: record.Markdown, RequestID: requestID, DocumentID: record.DocumentID, Cached: true}
		}
	}

	result, err := worker.Run(ctx, p.pool, "generate:"+string(req.Task.Kind()), p.timeout, func(ctx context.Context) (*Result, error) {
		return p.generate(ctx, req, requestID, logger)
	})
	if err != nil {
		detail := err.Error()
		if errors.Is(err, worker.ErrTimeout) {
			detail = DetailTimeout
		}
		return &Result{Status: StatusUpstreamError, RequestID: requestID, Detail: detail}
	}
	result.RequestID = requestID
	return result
}

func (p *Pipeline) validateRequest(req Request) error {
	if err := p.validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			if fe.Param() != "" {
				return fmt.Errorf("%w: %s failed '%s=%s'", prompt.ErrInvalidParameter, fe.Field(), fe.Tag(), fe.Param())
			}
			return fmt.Errorf("%w: %s is %s", prompt.ErrInvalidParameter, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", prompt.ErrInvalidParameter, err)
	}
	return req.Task.Validate()
}

// generate runs on a pool worker. It returns an error only when ctx is done, so
// the pool reports timeouts uniformly.
func (p *Pipeline) generate(ctx context.Context, req Request, requestID string, logger arbor.ILogger) (*Result, error) {
	upstream := func(stage string, err error) (*Result, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Result{Status: StatusUpstreamError, Detail: fmt.Sprintf("%s: %v", stage, err)}, nil
	}

	indexed, err := p.indexer.EnsureIndexed(ctx, req.DocumentPath, req.UserID)
	if errors.Is(err, index.ErrUnreadableDocument) {
		return &Result{Status: StatusInvalidParameter, Detail: err.Error()}, nil
	}
	if err != nil {
		return upstream("indexing failed", err)
	}
	if indexed.Empty {
		return &Result{Status: StatusNoContent, DocumentID: indexed.DocumentID, Detail: "document has no extractable text"}, nil
	}

	passage, err := p.retriever.Retrieve(ctx, indexed.DocumentID, req.Topic)
	if errors.Is(err, retriever.ErrNoContent) {
		return &Result{Status: StatusNoContent, DocumentID: indexed.DocumentID, Detail: "no content relevant to the topic"}, nil
	}
	if err != nil {
		return upstream("retrieval failed", err)
	}

	instruction, err := prompt.Compose(passage.Text, req.Topic, req.Task)
	if err != nil {
		return &Result{Status: StatusInvalidParameter, Detail: err.Error()}, nil
	}

	text, err := p.generator.Generate(ctx, instruction)
	if err != nil {
		return upstream("generation failed", err)
	}
	var markdown string
	if req.Task.Kind() == models.TaskKindNotes {
		markdown = text
		text = prompt.CleanNotes(text)
	}

	// A result that arrives after the deadline is discarded, not persisted
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := &models.GenerationRecord{
		RequestID:  requestID,
		Topic:      req.Topic,
		UserID:     req.UserID,
		DocumentID: indexed.DocumentID,
		Text:       text,
		Markdown:   markdown,
	}
	req.Task.Apply(record)

	if err := p.memo.Persist(ctx, record); err != nil {
		logger.Warn().Err(err).Str("request_id", requestID).Msg("Failed to persist generation record")
	}

	return &Result{Status: StatusOK, Text: text, Markdown: markdown, DocumentID: indexed.DocumentID}, nil
}
