// Package encoder maps weighted category lists onto fixed-dimension float
// vectors. All vectors that will ever be compared share one dimension,
// threaded explicitly from the instance profile.
package encoder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/cohort/engine"
	"github.com/hrygo/cohort/engine/aggregate"
)

// Encoder turns weighted categories into a fixed-dimension vector.
type Encoder interface {
	Encode(ctx context.Context, categories []aggregate.CategoryScore) ([]float32, error)
	Dimension() int
}

// HashingEncoder is the deterministic default: each category name hashes to a
// bucket and a sign, weights are summed into buckets, and the result is L2
// normalized. Identical input always yields a bit-identical vector; category
// order does not matter. An empty category list yields the zero vector.
type HashingEncoder struct {
	dimension int
}

func NewHashing(dimension int) *HashingEncoder {
	return &HashingEncoder{dimension: dimension}
}

func (e *HashingEncoder) Dimension() int {
	return e.dimension
}

func (e *HashingEncoder) Encode(_ context.Context, categories []aggregate.CategoryScore) ([]float32, error) {
	vector := make([]float32, e.dimension)
	if len(categories) == 0 {
		return vector, nil
	}

	// Summation order affects float rounding, so categories are folded in
	// sorted-name order regardless of input order.
	sorted := make([]aggregate.CategoryScore, len(categories))
	copy(sorted, categories)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, category := range sorted {
		bucket, sign := hashCategory(category.Name, e.dimension)
		vector[bucket] += sign * float32(category.Score)
	}

	normalize(vector)
	return vector, nil
}

// EncodeIdentifiers encodes group-shaped input: a set of category identifiers
// with implicit equal weight.
func (e *HashingEncoder) EncodeIdentifiers(ctx context.Context, ids []string) ([]float32, error) {
	categories := make([]aggregate.CategoryScore, 0, len(ids))
	for _, id := range ids {
		categories = append(categories, aggregate.CategoryScore{Name: id, Score: 1.0})
	}
	return e.Encode(ctx, categories)
}

func hashCategory(name string, dimension int) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum64()

	bucket := int(sum % uint64(dimension)) //nolint:gosec
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return bucket, sign
}

// normalize scales the vector to unit length. The zero vector is left as is.
func normalize(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] /= norm
	}
}

// EmbeddingEncoder delegates to an external embedding service. The categories
// and weights are rendered into one deterministic text (sorted by name), so
// identical input produces an identical request.
type EmbeddingEncoder struct {
	service engine.EmbeddingService
}

func NewEmbedding(service engine.EmbeddingService) *EmbeddingEncoder {
	return &EmbeddingEncoder{service: service}
}

func (e *EmbeddingEncoder) Dimension() int {
	return e.service.Dimensions()
}

func (e *EmbeddingEncoder) Encode(ctx context.Context, categories []aggregate.CategoryScore) ([]float32, error) {
	if len(categories) == 0 {
		return make([]float32, e.service.Dimensions()), nil
	}

	vector, err := e.service.Embed(ctx, renderCategories(categories))
	if err != nil {
		return nil, errors.Wrap(err, "embedding encode failed")
	}
	return vector, nil
}

// renderCategories serializes categories into the embedding request text.
func renderCategories(categories []aggregate.CategoryScore) string {
	sorted := make([]aggregate.CategoryScore, len(categories))
	copy(sorted, categories)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	parts := make([]string, 0, len(sorted))
	for _, category := range sorted {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", category.Name, category.Score))
	}
	return strings.Join(parts, ", ")
}
