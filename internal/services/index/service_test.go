package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/locks"
	"github.com/ternarybob/studygen/internal/models"
	"github.com/ternarybob/studygen/internal/storage/badger"
	"github.com/ternarybob/studygen/internal/testutil"
)

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveIndex(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[outcome]++
}

type fixture struct {
	service   *Service
	index     interfaces.DocumentIndex
	extractor *testutil.FileExtractor
	embedder  *testutil.WordEmbedder
	observer  *countingObserver
	dir       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(dir, "db")})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	f := &fixture{
		index:     manager.DocumentIndex(),
		extractor: testutil.NewFileExtractor(map[string]string{}),
		embedder:  testutil.NewWordEmbedder(),
		observer:  &countingObserver{},
		dir:       dir,
	}
	config := &common.IndexConfig{TopK: 3, MinScore: 0}
	f.service = NewService(f.index, f.extractor, f.embedder, locks.NewKeyedMutex(), config, f.observer, arbor.NewLogger())
	return f
}

// writeDoc creates a file whose bytes are content and registers text as its extraction
func (f *fixture) writeDoc(t *testing.T, name, content, text string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	f.extractor.Texts[path] = text
	return path
}

func TestEnsureIndexed_SameBytesIndexedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.writeDoc(t, "biology.pdf", "%PDF-1 biology", "Cells contain mitochondria")
	renamed := f.writeDoc(t, "copy-of-biology.pdf", "%PDF-1 biology", "Cells contain mitochondria")

	result, err := f.service.EnsureIndexed(ctx, first, "alice")
	require.NoError(t, err)
	assert.True(t, result.Added)
	assert.False(t, result.Empty)

	again, err := f.service.EnsureIndexed(ctx, renamed, "bob")
	require.NoError(t, err)
	assert.False(t, again.Added)
	assert.Equal(t, result.DocumentID, again.DocumentID)

	count, err := f.service.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.extractor.Calls(), "known hashes must not be re-extracted")
	assert.Equal(t, 1, f.embedder.CallCount(interfaces.EmbedModeDocument))

	entry, err := f.index.Get(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, first, entry.Source)
	assert.Equal(t, "alice", entry.UserID)

	assert.Equal(t, 1, f.observer.outcomes[OutcomeAdded])
	assert.Equal(t, 1, f.observer.outcomes[OutcomeExisting])
}

func TestEnsureIndexed_ConcurrentCallsShareOneBuild(t *testing.T) {
	f := newFixture(t)
	path := f.writeDoc(t, "physics.pdf", "%PDF-1 physics", "Force equals mass times acceleration")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.EnsureIndexed(context.Background(), path, "guest")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := f.service.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.extractor.Calls())
}

func TestEnsureIndexed_CallerTimeoutDoesNotFailSharedBuild(t *testing.T) {
	f := newFixture(t)
	path := f.writeDoc(t, "chemistry.pdf", "%PDF-1 chemistry", "Atoms bond by sharing electrons")
	release := make(chan struct{})
	f.extractor.Block = release

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.service.EnsureIndexed(short, path, "alice")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, f.extractor.Calls())

	// The build started for alice is still in flight; bob joins it
	done := make(chan struct{})
	var (
		result  *Result
		joinErr error
	)
	go func() {
		defer close(done)
		result, joinErr = f.service.EnsureIndexed(context.Background(), path, "bob")
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("EnsureIndexed did not return after the build was released")
	}
	require.NoError(t, joinErr)
	require.NotNil(t, result)
	assert.False(t, result.Empty)
	assert.Equal(t, 1, f.extractor.Calls())

	count, err := f.service.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEnsureIndexed_BuildTimeoutBoundsExtraction(t *testing.T) {
	f := newFixture(t)
	f.service.config.BuildTimeout = "50ms"
	path := f.writeDoc(t, "geology.pdf", "%PDF-1 geology", "Basalt is an igneous rock")
	f.extractor.Block = make(chan struct{})

	_, err := f.service.EnsureIndexed(context.Background(), path, "guest")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	count, err := f.service.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEnsureIndexed_EmptyDocumentRecordedWithoutEmbedding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.writeDoc(t, "scan.pdf", "%PDF-1 scanned", "   \n ")

	result, err := f.service.EnsureIndexed(ctx, path, "guest")
	require.NoError(t, err)
	assert.True(t, result.Empty)
	assert.Equal(t, 0, f.embedder.CallCount(interfaces.EmbedModeDocument))

	again, err := f.service.EnsureIndexed(ctx, path, "guest")
	require.NoError(t, err)
	assert.True(t, again.Empty)
	assert.Equal(t, 1, f.extractor.Calls(), "empty documents are not re-extracted")

	passages, err := f.service.Query(ctx, "anything", 3, models.IndexFilter{DocumentID: result.DocumentID})
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestEnsureIndexed_UnreadablePath(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.EnsureIndexed(context.Background(), filepath.Join(f.dir, "missing.pdf"), "guest")
	assert.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestEnsureIndexed_EmbedFailureLeavesNoEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.writeDoc(t, "chem.pdf", "%PDF-1 chem", "Atoms bond")
	f.embedder.Err = assert.AnError

	_, err := f.service.EnsureIndexed(ctx, path, "guest")
	require.ErrorIs(t, err, assert.AnError)

	count, err := f.service.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQuery_ScopedToDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.writeDoc(t, "a.pdf", "%PDF-1 a", "Photosynthesis converts light into chemical energy")
	b := f.writeDoc(t, "b.pdf", "%PDF-1 b", "Mitochondria are the powerhouse of the cell")

	resA, err := f.service.EnsureIndexed(ctx, a, "guest")
	require.NoError(t, err)
	resB, err := f.service.EnsureIndexed(ctx, b, "guest")
	require.NoError(t, err)

	passages, err := f.service.Query(ctx, "mitochondria", 3, models.IndexFilter{DocumentID: resA.DocumentID})
	require.NoError(t, err)
	assert.Empty(t, passages)

	passages, err = f.service.Query(ctx, "mitochondria", 3, models.IndexFilter{DocumentID: resB.DocumentID})
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, resB.DocumentID, passages[0].DocumentID)
	assert.Greater(t, passages[0].Score, 0.0)
	assert.Equal(t, 2, f.embedder.CallCount(interfaces.EmbedModeQuery))
}

func TestPurge_AllowsReindex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := f.writeDoc(t, "geo.pdf", "%PDF-1 geo", "Plates move")

	result, err := f.service.EnsureIndexed(ctx, path, "guest")
	require.NoError(t, err)

	require.NoError(t, f.service.Purge(ctx, result.DocumentID))
	assert.ErrorIs(t, f.service.Purge(ctx, result.DocumentID), interfaces.ErrKeyNotFound)

	again, err := f.service.EnsureIndexed(ctx, path, "guest")
	require.NoError(t, err)
	assert.True(t, again.Added)
	assert.Equal(t, 2, f.extractor.Calls())

	docs, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, result.DocumentID, docs[0].ID)
}
