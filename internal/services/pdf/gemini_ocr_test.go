package pdf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/services/llm"
)

const geminiTranscript = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Chapter 1\nCells are the unit of life."}]},"finishReason":"STOP"}]}`

// geminiServer answers generateContent with the given statuses in order, then with reply.
// The request body of the last call is kept for inspection.
func geminiServer(t *testing.T, statuses []int, reply string) (*httptest.Server, *int32, *atomic.Value) {
	t.Helper()
	var calls int32
	lastBody := &atomic.Value{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		body, _ := io.ReadAll(r.Body)
		lastBody.Store(string(body))

		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			fmt.Fprintf(w, `{"error":{"code":%d,"message":"try later","status":"UNAVAILABLE"}}`, statuses[n-1])
			return
		}
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server, &calls, lastBody
}

func newTestGeminiOCR(t *testing.T, baseURL string) *GeminiOCR {
	t.Helper()
	config := &common.GeminiConfig{APIKey: "test-key", BaseURL: baseURL}
	client, err := llm.NewGeminiClient(context.Background(), config, nil)
	require.NoError(t, err)

	policy := &llm.RetryPolicy{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
		AttemptTimeout:    5 * time.Second,
	}
	return NewGeminiOCR(client, "gemini-2.0-flash", policy, nil, arbor.NewLogger())
}

func writeScan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 scanned pages"), 0644))
	return path
}

func TestGeminiOCR_SendsDocumentInline(t *testing.T) {
	server, calls, lastBody := geminiServer(t, nil, geminiTranscript)
	ocr := newTestGeminiOCR(t, server.URL)

	text, err := ocr.Recognize(context.Background(), writeScan(t), 2)
	require.NoError(t, err)

	assert.Equal(t, "Chapter 1\nCells are the unit of life.", text)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	body := lastBody.Load().(string)
	assert.Contains(t, body, "application/pdf")
	assert.Contains(t, body, "Transcribe all readable text")
}

func TestGeminiOCR_RetriesUnavailable(t *testing.T) {
	server, calls, _ := geminiServer(t, []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable}, geminiTranscript)
	ocr := newTestGeminiOCR(t, server.URL)

	text, err := ocr.Recognize(context.Background(), writeScan(t), 1)
	require.NoError(t, err)
	assert.Contains(t, text, "Cells are the unit of life.")
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestGeminiOCR_GivesUpAfterRetries(t *testing.T) {
	statuses := []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable}
	server, _, _ := geminiServer(t, statuses, geminiTranscript)
	ocr := newTestGeminiOCR(t, server.URL)

	_, err := ocr.Recognize(context.Background(), writeScan(t), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini ocr failed after 2 retries")
}

func TestGeminiOCR_EmptyTranscriptIsNotAnError(t *testing.T) {
	empty := `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"STOP"}]}`
	server, _, _ := geminiServer(t, nil, empty)
	ocr := newTestGeminiOCR(t, server.URL)

	text, err := ocr.Recognize(context.Background(), writeScan(t), 1)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGeminiOCR_MissingFile(t *testing.T) {
	server, calls, _ := geminiServer(t, nil, geminiTranscript)
	ocr := newTestGeminiOCR(t, server.URL)

	_, err := ocr.Recognize(context.Background(), missingPath(t), 1)
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}
