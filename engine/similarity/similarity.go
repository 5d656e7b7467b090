// Package similarity ranks candidate vectors against a query vector by
// cosine similarity. All functions are pure.
package similarity

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/cohort/store"
)

// Candidate pairs an entity id with its vector.
type Candidate struct {
	ID     int32
	Vector []float32
}

// Recommendation is one ranked result. Rank is the 1-based position in the
// sorted, filtered list.
type Recommendation struct {
	ID         int32
	Similarity float32
	Rank       int
}

// Cosine computes the cosine similarity of two equal-length vectors.
// If either vector has zero magnitude the similarity is 0, never NaN.
func Cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Recommend filters candidates to similarity >= minSimilarity, sorts them by
// descending similarity (ties broken by ascending id) and returns at most
// topK results. A candidate whose dimension differs from the query is a
// programming error and fails fast.
func Recommend(query []float32, candidates []Candidate, topK int, minSimilarity float32) ([]Recommendation, error) {
	if len(query) == 0 {
		return nil, errors.Wrap(store.ErrDimensionMismatch, "query vector is empty")
	}
	if topK <= 0 {
		return []Recommendation{}, nil
	}

	results := make([]Recommendation, 0, len(candidates))
	for _, candidate := range candidates {
		if len(candidate.Vector) != len(query) {
			return nil, errors.Wrapf(store.ErrDimensionMismatch,
				"candidate %d has dimension %d, query has %d", candidate.ID, len(candidate.Vector), len(query))
		}
		score := Cosine(query, candidate.Vector)
		if score >= minSimilarity {
			results = append(results, Recommendation{ID: candidate.ID, Similarity: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}
