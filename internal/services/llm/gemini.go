package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// NewGeminiClient resolves the Gemini API key and creates a genai client
func NewGeminiClient(ctx context.Context, config *common.GeminiConfig, kv interfaces.KeyValueStorage) (*genai.Client, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kv, "gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set STUDYGEN_GEMINI_API_KEY, GEMINI_API_KEY or gemini.api_key): %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// newLimiter returns a limiter allowing one call per interval; nil disables limiting
func newLimiter(interval string) *rate.Limiter {
	d := common.ParseDurationOr(interval, 0)
	if d <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// GeminiEmbedder implements interfaces.Embedder with the Gemini embedding API.
// The task type is chosen per call from the mode argument.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
	maxChars  int
	policy    *RetryPolicy
	limiter   *rate.Limiter
	observer  CallObserver
	logger    arbor.ILogger
}

// NewGeminiEmbedder creates an embedder sharing the given client
func NewGeminiEmbedder(client *genai.Client, config *common.Config, observer CallObserver, logger arbor.ILogger) *GeminiEmbedder {
	model := config.Gemini.EmbedModel
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GeminiEmbedder{
		client:    client,
		model:     model,
		dimension: config.Gemini.EmbedDimension,
		maxChars:  config.Index.MaxEmbedChars,
		policy:    NewRetryPolicy(&config.Retry, common.ParseDurationOr(config.Gemini.Timeout, 2*time.Minute)),
		limiter:   newLimiter(config.Gemini.RateLimit),
		observer:  observer,
		logger:    logger,
	}
}

// TaskTypeFor maps an embed mode to the Gemini task type
func TaskTypeFor(mode interfaces.EmbedMode) (string, error) {
	switch mode {
	case interfaces.EmbedModeDocument:
		return "RETRIEVAL_DOCUMENT", nil
	case interfaces.EmbedModeQuery:
		return "RETRIEVAL_QUERY", nil
	default:
		return "", fmt.Errorf("unknown embed mode %q", mode)
	}
}

// Embed returns the embedding of text for the given mode
func (e *GeminiEmbedder) Embed(ctx context.Context, text string, mode interfaces.EmbedMode) ([]float32, error) {
	taskType, err := TaskTypeFor(mode)
	if err != nil {
		return nil, err
	}
	text = TruncateRunes(strings.TrimSpace(text), e.maxChars)
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	config := &genai.EmbedContentConfig{TaskType: taskType}
	if e.dimension > 0 {
		dim := int32(e.dimension)
		config.OutputDimensionality = &dim
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	start := time.Now()
	values, err := Retry(ctx, e.policy, e.logger, "gemini embed", func(ctx context.Context) ([]float32, error) {
		if err := waitLimiter(ctx, e.limiter); err != nil {
			return nil, err
		}
		result, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
		if err != nil {
			return nil, err
		}
		if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
			return nil, fmt.Errorf("empty embedding returned by %s", e.model)
		}
		return result.Embeddings[0].Values, nil
	})
	observe(e.observer, OperationEmbed, e.model, start, err)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("mode", string(mode)).
		Int("text_length", len(text)).
		Int("embedding_dim", len(values)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return values, nil
}

func (e *GeminiEmbedder) ModelName() string {
	return e.model
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// GeminiGenerator implements interfaces.Generator with Gemini content generation
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	policy      *RetryPolicy
	limiter     *rate.Limiter
	observer    CallObserver
	logger      arbor.ILogger
}

// NewGeminiGenerator creates a generator sharing the given client
func NewGeminiGenerator(client *genai.Client, config *common.Config, observer CallObserver, logger arbor.ILogger) *GeminiGenerator {
	model := config.Gemini.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiGenerator{
		client:      client,
		model:       model,
		temperature: config.Gemini.Temperature,
		policy:      NewRetryPolicy(&config.Retry, common.ParseDurationOr(config.Gemini.Timeout, 2*time.Minute)),
		limiter:     newLimiter(config.Gemini.RateLimit),
		observer:    observer,
		logger:      logger,
	}
}

// Generate sends the prompt as a single user turn and returns the response text
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	config := &genai.GenerateContentConfig{}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(g.temperature)
	}

	start := time.Now()
	text, err := Retry(ctx, g.policy, g.logger, "gemini generate", func(ctx context.Context) (string, error) {
		if err := waitLimiter(ctx, g.limiter); err != nil {
			return "", err
		}
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return "", err
		}
		text := resp.Text()
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("empty response from Gemini API")
		}
		return text, nil
	})
	observe(g.observer, OperationGenerate, g.model, start, err)
	if err != nil {
		return "", err
	}

	g.logger.Debug().
		Str("model", g.model).
		Int("prompt_length", len(prompt)).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Gemini generation completed")

	return text, nil
}

func (g *GeminiGenerator) ModelName() string {
	return g.model
}

// Close is a no-op; genai.Client holds no resources that need releasing
func (g *GeminiGenerator) Close() error {
	return nil
}

// TruncateRunes cuts s to at most max runes; max <= 0 leaves s unchanged
func TruncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
