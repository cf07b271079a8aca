// Package retriever selects the passage of one document most relevant to a topic.
package retriever

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/studygen/internal/models"
)

// ErrNoContent means the document holds nothing relevant to the topic.
// It is a normal outcome, not a failure.
var ErrNoContent = errors.New("no relevant content")

// Candidates is the number of passages requested from the index per retrieval
const Candidates = 3

// Querier runs a topic query against the document index
type Querier interface {
	Query(ctx context.Context, topic string, k int, filter models.IndexFilter) ([]models.Passage, error)
}

type Retriever struct {
	querier Querier
	logger  arbor.ILogger
}

func New(querier Querier, logger arbor.ILogger) *Retriever {
	return &Retriever{querier: querier, logger: logger}
}

// Retrieve returns the best passage of documentID for topic, or ErrNoContent
func (r *Retriever) Retrieve(ctx context.Context, documentID, topic string) (*models.Passage, error) {
	passages, err := r.querier.Query(ctx, topic, Candidates, models.IndexFilter{DocumentID: documentID})
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		r.logger.Debug().Str("document_id", documentID).Str("topic", topic).Msg("No passage matched topic")
		return nil, ErrNoContent
	}

	best := passages[0]
	r.logger.Debug().
		Str("document_id", documentID).
		Str("topic", topic).
		Float64("score", best.Score).
		Int("candidates", len(passages)).
		Msg("Retrieved passage")
	return &best, nil
}
