// Package index maintains the content-addressed document index: one entry per
// unique document, keyed by the SHA-256 of its bytes.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/singleflight"

	"github.com/ternarybob/studygen/internal/common"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/ternarybob/studygen/internal/models"
)

// ErrUnreadableDocument is returned when the document path cannot be read
var ErrUnreadableDocument = errors.New("document is not readable")

// Outcomes reported to the observer
const (
	OutcomeAdded    = "added"
	OutcomeExisting = "existing"
	OutcomeEmpty    = "empty"
)

// Observer receives the outcome of each EnsureIndexed call
type Observer interface {
	ObserveIndex(outcome string)
}

// Result describes the indexed state of one document
type Result struct {
	DocumentID string
	Added      bool // false when the hash was already indexed
	Empty      bool // no text could be extracted
}

// Service indexes documents and answers topic queries against the index
type Service struct {
	index     interfaces.DocumentIndex
	extractor interfaces.TextExtractor
	embedder  interfaces.Embedder
	locker    interfaces.KeyedLocker
	hashes    *HashCache
	group     singleflight.Group
	config    *common.IndexConfig
	observer  Observer
	logger    arbor.ILogger
}

// NewService creates an index service. observer may be nil.
func NewService(
	index interfaces.DocumentIndex,
	extractor interfaces.TextExtractor,
	embedder interfaces.Embedder,
	locker interfaces.KeyedLocker,
	config *common.IndexConfig,
	observer Observer,
	logger arbor.ILogger,
) *Service {
	return &Service{
		index:     index,
		extractor: extractor,
		embedder:  embedder,
		locker:    locker,
		hashes:    NewHashCache(),
		config:    config,
		observer:  observer,
		logger:    logger,
	}
}

// DocumentID returns the content hash of the document at path
func (s *Service) DocumentID(path string) (string, error) {
	id, err := s.hashes.Hash(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return id, nil
}

// DefaultBuildTimeout bounds a build when index.build_timeout is unset
const DefaultBuildTimeout = 10 * time.Minute

// EnsureIndexed adds the document at path to the index unless its content hash is
// already present. Concurrent calls for the same bytes share one build, which
// outlives any single caller's ctx and is bounded by the build timeout instead.
func (s *Service) EnsureIndexed(ctx context.Context, path, userID string) (*Result, error) {
	id, err := s.DocumentID(path)
	if err != nil {
		return nil, err
	}

	if result, err := s.existing(ctx, id); err != nil || result != nil {
		return result, err
	}

	ch := s.group.DoChan(id, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), common.ParseDurationOr(s.config.BuildTimeout, DefaultBuildTimeout))
		defer cancel()
		return s.build(buildCtx, id, path, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*Result)
		if res.Shared && result.Added {
			// Only the caller that ran the build reports Added
			result.Added = false
		}
		return &result, nil
	}
}

// existing returns the indexed state of id, or nil when it is not indexed
func (s *Service) existing(ctx context.Context, id string) (*Result, error) {
	entry, err := s.index.Get(ctx, id)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up document %s: %w", id, err)
	}
	s.observe(OutcomeExisting)
	return &Result{DocumentID: id, Empty: entry.Empty}, nil
}

func (s *Service) build(ctx context.Context, id, path, userID string) (*Result, error) {
	unlock, err := s.locker.Lock(ctx, "index:"+id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock document %s: %w", id, err)
	}
	defer unlock()

	// Another process may have indexed it while we waited
	if result, err := s.existing(ctx, id); err != nil || result != nil {
		return result, err
	}

	start := time.Now()
	extraction, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}

	entry := &models.IndexedEntry{
		ID:        id,
		Source:    path,
		UserID:    userID,
		Text:      extraction.Text,
		PageCount: extraction.PageCount,
		IndexedAt: time.Now(),
	}

	if strings.TrimSpace(extraction.Text) == "" {
		entry.Empty = true
		entry.Text = ""
	} else {
		vector, err := s.embedder.Embed(ctx, extraction.Text, interfaces.EmbedModeDocument)
		if err != nil {
			return nil, fmt.Errorf("failed to embed %s: %w", path, err)
		}
		entry.Embedding = vector
	}

	added, err := s.index.Add(ctx, entry)
	if err != nil {
		return nil, err
	}

	outcome := OutcomeAdded
	if entry.Empty {
		outcome = OutcomeEmpty
	}
	s.observe(outcome)

	s.logger.Info().
		Str("document_id", id).
		Str("source", path).
		Str("user_id", userID).
		Str("method", extraction.Method).
		Int("pages", extraction.PageCount).
		Int("text_length", len(entry.Text)).
		Bool("empty", entry.Empty).
		Dur("elapsed", time.Since(start)).
		Msg("Document indexed")

	return &Result{DocumentID: id, Added: added, Empty: entry.Empty}, nil
}

// Query embeds topic in query mode and returns up to k passages matching filter.
// k <= 0 uses the configured default.
func (s *Service) Query(ctx context.Context, topic string, k int, filter models.IndexFilter) ([]models.Passage, error) {
	if k <= 0 {
		k = s.config.TopK
	}
	vector, err := s.embedder.Embed(ctx, topic, interfaces.EmbedModeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed topic: %w", err)
	}
	return s.index.Query(ctx, vector, k, s.config.MinScore, filter)
}

// List returns summaries of every indexed document
func (s *Service) List(ctx context.Context) ([]models.DocumentSummary, error) {
	return s.index.List(ctx)
}

// Purge removes the entry for id so the document is extracted again next time
func (s *Service) Purge(ctx context.Context, id string) error {
	unlock, err := s.locker.Lock(ctx, "index:"+id)
	if err != nil {
		return fmt.Errorf("failed to lock document %s: %w", id, err)
	}
	defer unlock()
	return s.index.Purge(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveIndex(outcome)
	}
}
