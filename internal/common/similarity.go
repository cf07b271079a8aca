package common

import (
	"math"
	"sort"

	"github.com/ternarybob/studygen/internal/models"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankEntries scores every searchable entry that matches filter against vector and
// returns the best k scoring strictly above minScore. Ties break on document ID so
// the order is deterministic.
func RankEntries(entries []models.IndexedEntry, vector []float32, k int, minScore float64, filter models.IndexFilter) []models.Passage {
	passages := make([]models.Passage, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		if !entry.Searchable() || !filter.Matches(entry) {
			continue
		}
		score := CosineSimilarity(vector, entry.Embedding)
		if score <= minScore {
			continue
		}
		passages = append(passages, models.Passage{
			DocumentID: entry.ID,
			Source:     entry.Source,
			Text:       entry.Text,
			Score:      score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].DocumentID < passages[j].DocumentID
	})

	if k > 0 && len(passages) > k {
		passages = passages[:k]
	}
	return passages
}
