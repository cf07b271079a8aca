package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun("notes", "ok", time.Second, false)
	m.ObserveRun("notes", "ok", time.Millisecond, true)
	m.ObserveRun("quiz", "no_content", time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("notes", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("quiz", "no_content")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("notes")))
}

func TestMetrics_ObserveCall(t *testing.T) {
	m := New()

	m.ObserveCall("embed", "gemini-embedding-001", time.Millisecond, nil)
	m.ObserveCall("generate", "gemini-2.0-flash", time.Millisecond, errors.New("503"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("embed", "gemini-embedding-001", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("generate", "gemini-2.0-flash", "error")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveIndex("added")

	path := filepath.Join(t.TempDir(), "studygen.prom")
	require.NoError(t, m.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `studygen_index_operations_total{outcome="added"} 1`)
}
