package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"golang.org/x/time/rate"
)

// ClaudeGenerator implements interfaces.Generator with the Anthropic Messages API
type ClaudeGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	policy      *RetryPolicy
	limiter     *rate.Limiter
	observer    CallObserver
	logger      arbor.ILogger
}

// NewClaudeGenerator resolves the Anthropic API key and creates a generator
func NewClaudeGenerator(ctx context.Context, config *common.Config, kv interfaces.KeyValueStorage, observer CallObserver, logger arbor.ILogger) (*ClaudeGenerator, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kv, "anthropic_api_key", config.Claude.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API key is required (set STUDYGEN_CLAUDE_API_KEY, ANTHROPIC_API_KEY or claude.api_key): %w", err)
	}

	model := config.Claude.Model
	if model == "" {
		model = "claude-haiku-4-5"
	}
	maxTokens := config.Claude.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	// Retries are handled by the policy, not the SDK
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if config.Claude.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.Claude.BaseURL))
	}

	return &ClaudeGenerator{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: config.Claude.Temperature,
		policy:      NewRetryPolicy(&config.Retry, common.ParseDurationOr(config.Claude.Timeout, 2*time.Minute)),
		limiter:     newLimiter(config.Claude.RateLimit),
		observer:    observer,
		logger:      logger,
	}, nil
}

// Generate sends the prompt as a single user message and joins the text blocks of the reply
func (c *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.temperature))
	}

	start := time.Now()
	text, err := Retry(ctx, c.policy, c.logger, "claude generate", func(ctx context.Context) (string, error) {
		if err := waitLimiter(ctx, c.limiter); err != nil {
			return "", err
		}
		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", err
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if strings.TrimSpace(text.String()) == "" {
			return "", fmt.Errorf("empty response from Claude API")
		}
		return text.String(), nil
	})
	observe(c.observer, OperationGenerate, c.model, start, err)
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("prompt_length", len(prompt)).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Claude generation completed")

	return text, nil
}

func (c *ClaudeGenerator) ModelName() string {
	return c.model
}

func (c *ClaudeGenerator) Close() error {
	return nil
}
