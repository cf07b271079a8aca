package pdf

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/services/llm"
	"google.golang.org/genai"
)

const transcribeInstruction = "Transcribe all readable text in this document in page order. " +
	"Output only the text, with no commentary. Output nothing if the document has no text."

// maxInlinePDFBytes is the largest document sent inline to the multimodal model
const maxInlinePDFBytes = 20 << 20

// GeminiOCR recognizes scanned documents with a multimodal Gemini model
type GeminiOCR struct {
	client   *genai.Client
	model    string
	policy   *llm.RetryPolicy
	observer llm.CallObserver
	logger   arbor.ILogger
}

// NewGeminiOCR creates a recognizer sharing the given client
func NewGeminiOCR(client *genai.Client, model string, policy *llm.RetryPolicy, observer llm.CallObserver, logger arbor.ILogger) *GeminiOCR {
	return &GeminiOCR{
		client:   client,
		model:    model,
		policy:   policy,
		observer: observer,
		logger:   logger,
	}
}

// Recognize sends the whole document inline and returns the transcription
func (g *GeminiOCR) Recognize(ctx context.Context, path string, pageCount int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if len(data) > maxInlinePDFBytes {
		return "", fmt.Errorf("document too large for inline OCR: %d bytes", len(data))
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, "application/pdf"),
			genai.NewPartFromText(transcribeInstruction),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)}

	start := time.Now()
	text, err := llm.Retry(ctx, g.policy, g.logger, "gemini ocr", func(ctx context.Context) (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	if g.observer != nil {
		g.observer.ObserveCall(llm.OperationOCR, g.model, time.Since(start), err)
	}
	if err != nil {
		return "", err
	}

	g.logger.Debug().
		Str("path", path).
		Int("page_count", pageCount).
		Int("text_length", len(text)).
		Msg("Gemini OCR completed")

	return text, nil
}

// NewRecognizer builds the OCR engine named by config.Extraction.OCREngine.
// "none" returns a nil Recognizer, which disables the fallback.
func NewRecognizer(config *common.Config, client *genai.Client, policy *llm.RetryPolicy, observer llm.CallObserver, logger arbor.ILogger) (Recognizer, error) {
	switch config.Extraction.OCREngine {
	case "none":
		return nil, nil
	case "", "tesseract":
		return NewTesseractOCR(&config.Extraction, nil, logger), nil
	case "gemini":
		if client == nil {
			return nil, fmt.Errorf("gemini OCR requires a Gemini client")
		}
		return NewGeminiOCR(client, config.Gemini.Model, policy, observer, logger), nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", config.Extraction.OCREngine)
	}
}
