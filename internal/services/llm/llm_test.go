package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
)

func TestTaskTypeFor(t *testing.T) {
	taskType, err := TaskTypeFor(interfaces.EmbedModeDocument)
	require.NoError(t, err)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", taskType)

	taskType, err = TaskTypeFor(interfaces.EmbedModeQuery)
	require.NoError(t, err)
	assert.Equal(t, "RETRIEVAL_QUERY", taskType)

	_, err = TaskTypeFor("clustering")
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("hello", 0))
	assert.Equal(t, "hel", TruncateRunes("hello", 3))
	assert.Equal(t, "héé", TruncateRunes("héééé", 3))
	assert.Equal(t, "hi", TruncateRunes("hi", 10))
}

type recordingObserver struct {
	operations []string
	errs       []error
}

func (r *recordingObserver) ObserveCall(operation, model string, duration time.Duration, err error) {
	r.operations = append(r.operations, operation)
	r.errs = append(r.errs, err)
}

func TestMultiObserver_FansOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	observer := MultiObserver{a, nil, b, NewLogObserver(arbor.NewLogger())}

	observer.ObserveCall(OperationEmbed, "m", time.Millisecond, nil)
	observer.ObserveCall(OperationGenerate, "m", time.Millisecond, errors.New("boom"))

	assert.Equal(t, []string{OperationEmbed, OperationGenerate}, a.operations)
	assert.Equal(t, a.operations, b.operations)
	assert.Error(t, b.errs[1])
}

func TestNewGenerator_ProviderSelection(t *testing.T) {
	config := common.NewDefaultConfig()

	_, err := NewGenerator(context.Background(), config, nil, nil, nil, arbor.NewLogger())
	assert.Error(t, err, "gemini provider needs a client")

	config.LLM.DefaultProvider = "openai"
	_, err = NewGenerator(context.Background(), config, nil, nil, nil, arbor.NewLogger())
	assert.Error(t, err)

	t.Setenv("STUDYGEN_CLAUDE_API_KEY", "test-key")
	config.LLM.DefaultProvider = common.LLMProviderClaude
	generator, err := NewGenerator(context.Background(), config, nil, nil, nil, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, config.Claude.Model, generator.ModelName())
}
