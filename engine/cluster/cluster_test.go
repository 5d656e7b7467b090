package cluster

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cohort/engine/similarity"
	"github.com/hrygo/cohort/store"
)

func TestClusterTwoDistinctGroups(t *testing.T) {
	// Two tight bundles on orthogonal axes.
	vectors := []similarity.Candidate{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0.99, 0.05}},
		{ID: 3, Vector: []float32{0.98, 0.1}},
		{ID: 4, Vector: []float32{0, 1}},
		{ID: 5, Vector: []float32{0.05, 0.99}},
		{ID: 6, Vector: []float32{0.1, 0.98}},
	}

	results, err := Cluster(vectors, 0.9, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.ElementsMatch(t, []int32{1, 2, 3}, memberIDs(results[0]))
	assert.ElementsMatch(t, []int32{4, 5, 6}, memberIDs(results[1]))
}

func TestClusterDropsUndersizedCandidates(t *testing.T) {
	vectors := []similarity.Candidate{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0.99, 0.05}},
		{ID: 3, Vector: []float32{0, 1}},
	}

	results, err := Cluster(vectors, 0.9, 3)
	require.NoError(t, err)
	assert.Empty(t, results, "a candidate below min size must not become a cluster")
}

func TestClusterMembersAreDisjoint(t *testing.T) {
	vectors := []similarity.Candidate{
		{ID: 1, Vector: []float32{1, 0, 0}},
		{ID: 2, Vector: []float32{0.9, 0.1, 0}},
		{ID: 3, Vector: []float32{0.8, 0.2, 0}},
		{ID: 4, Vector: []float32{0.7, 0.3, 0}},
		{ID: 5, Vector: []float32{0, 0, 1}},
		{ID: 6, Vector: []float32{0, 0.1, 0.9}},
	}

	results, err := Cluster(vectors, 0.7, 2)
	require.NoError(t, err)

	seen := map[int32]bool{}
	for _, result := range results {
		for _, member := range result.Members {
			assert.False(t, seen[member.UserID], "user %d appears in more than one cluster", member.UserID)
			seen[member.UserID] = true
		}
	}
}

func TestClusterCentroidSimilarity(t *testing.T) {
	vectors := []similarity.Candidate{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0.95, 0.05}},
		{ID: 3, Vector: []float32{0.9, 0.1}},
	}

	results, err := Cluster(vectors, 0.9, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, results[0].Centroid, 2)
	for _, member := range results[0].Members {
		assert.Greater(t, member.Similarity, float32(0.9))
	}
}

func TestClusterEmptyInput(t *testing.T) {
	results, err := Cluster(nil, 0.6, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClusterInvalidMinSize(t *testing.T) {
	_, err := Cluster(nil, 0.6, 0)
	assert.Error(t, err)
}

func TestClusterDimensionMismatch(t *testing.T) {
	vectors := []similarity.Candidate{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{1, 0, 0}},
	}
	_, err := Cluster(vectors, 0.6, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrDimensionMismatch))
}

func memberIDs(result Result) []int32 {
	ids := make([]int32, 0, len(result.Members))
	for _, member := range result.Members {
		ids = append(ids, member.UserID)
	}
	return ids
}
