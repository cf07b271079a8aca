package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"google.golang.org/genai"
)

// NewGenerator creates the generator selected by config.LLM.DefaultProvider.
// geminiClient may be nil when the provider is Claude.
func NewGenerator(ctx context.Context, config *common.Config, geminiClient *genai.Client, kv interfaces.KeyValueStorage, observer CallObserver, logger arbor.ILogger) (interfaces.Generator, error) {
	switch config.LLM.DefaultProvider {
	case common.LLMProviderClaude:
		return NewClaudeGenerator(ctx, config, kv, observer, logger)
	case common.LLMProviderGemini, "":
		if geminiClient == nil {
			return nil, fmt.Errorf("gemini client is required for provider %q", common.LLMProviderGemini)
		}
		return NewGeminiGenerator(geminiClient, config, observer, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.LLM.DefaultProvider)
	}
}
