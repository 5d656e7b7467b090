package encoder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cohort/engine/aggregate"
)

func TestHashingEncoderDeterminism(t *testing.T) {
	enc := NewHashing(64)
	ctx := context.Background()

	categories := []aggregate.CategoryScore{
		{Name: "subject:algorithms", Score: 3.0},
		{Name: "tag:golang", Score: 0.5},
		{Name: "type:article", Score: 1.5},
	}

	first, err := enc.Encode(ctx, categories)
	require.NoError(t, err)
	second, err := enc.Encode(ctx, categories)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical input must yield a bit-identical vector")
}

func TestHashingEncoderOrderInvariance(t *testing.T) {
	enc := NewHashing(64)
	ctx := context.Background()

	forward := []aggregate.CategoryScore{
		{Name: "subject:calculus", Score: 2.0},
		{Name: "tag:proofs", Score: 1.0},
		{Name: "type:video", Score: 0.5},
	}
	reversed := []aggregate.CategoryScore{
		{Name: "type:video", Score: 0.5},
		{Name: "tag:proofs", Score: 1.0},
		{Name: "subject:calculus", Score: 2.0},
	}

	a, err := enc.Encode(ctx, forward)
	require.NoError(t, err)
	b, err := enc.Encode(ctx, reversed)
	require.NoError(t, err)
	assert.Equal(t, a, b, "category order must not change the encoding")
}

func TestHashingEncoderEmptyInput(t *testing.T) {
	enc := NewHashing(16)

	vector, err := enc.Encode(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, vector, 16)
	for _, v := range vector {
		assert.Zero(t, v)
	}
}

func TestHashingEncoderUnitNorm(t *testing.T) {
	enc := NewHashing(128)

	vector, err := enc.Encode(context.Background(), []aggregate.CategoryScore{
		{Name: "subject:physics", Score: 4.5},
		{Name: "subject:chemistry", Score: 1.5},
		{Name: "tag:labs", Score: 0.5},
	})
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestHashingEncoderDimension(t *testing.T) {
	assert.Equal(t, 384, NewHashing(384).Dimension())
}

func TestEncodeIdentifiers(t *testing.T) {
	enc := NewHashing(64)
	ctx := context.Background()

	fromIDs, err := enc.EncodeIdentifiers(ctx, []string{"subject:algebra", "tag:matrices"})
	require.NoError(t, err)

	fromCategories, err := enc.Encode(ctx, []aggregate.CategoryScore{
		{Name: "subject:algebra", Score: 1.0},
		{Name: "tag:matrices", Score: 1.0},
	})
	require.NoError(t, err)

	assert.Equal(t, fromCategories, fromIDs)
}

func TestRenderCategoriesStable(t *testing.T) {
	a := renderCategories([]aggregate.CategoryScore{
		{Name: "tag:go", Score: 0.5},
		{Name: "subject:databases", Score: 2.0},
	})
	b := renderCategories([]aggregate.CategoryScore{
		{Name: "subject:databases", Score: 2.0},
		{Name: "tag:go", Score: 0.5},
	})
	assert.Equal(t, a, b)
	assert.Equal(t, "subject:databases (2.00), tag:go (0.50)", a)
}
