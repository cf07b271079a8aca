package interfaces

import (
	"context"

	"github.com/ternarybob/studygen/internal/models"
)

// DocumentIndex is the persisted vector store holding one entry per unique document.
// Implementations rank by cosine similarity and never error on an empty match.
type DocumentIndex interface {
	// ListIDs returns the IDs of every indexed document
	ListIDs(ctx context.Context) ([]string, error)

	// Has reports whether an entry with the given ID exists
	Has(ctx context.Context, id string) (bool, error)

	// Add inserts an entry. Adding an existing ID is a no-op that returns false.
	Add(ctx context.Context, entry *models.IndexedEntry) (bool, error)

	// Get returns the entry with the given ID, or ErrKeyNotFound
	Get(ctx context.Context, id string) (*models.IndexedEntry, error)

	// Query returns up to k searchable entries matching filter, best first, scoring strictly above minScore
	Query(ctx context.Context, vector []float32, k int, minScore float64, filter models.IndexFilter) ([]models.Passage, error)

	// Purge removes an entry, returns ErrKeyNotFound if absent
	Purge(ctx context.Context, id string) error

	// Count returns the number of indexed entries
	Count(ctx context.Context) (int, error)

	// List returns summaries of every indexed document
	List(ctx context.Context) ([]models.DocumentSummary, error)
}
