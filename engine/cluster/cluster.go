// Package cluster partitions user vectors into groups of mutually similar
// users via greedy threshold clustering. The result is intentionally
// approximate, not globally optimal; determinism is only guaranteed for a
// fixed iteration order over the input.
package cluster

import (
	"github.com/pkg/errors"

	"github.com/hrygo/cohort/engine/similarity"
	"github.com/hrygo/cohort/store"
)

// Member is one clustered user with their similarity to the final centroid.
type Member struct {
	UserID     int32
	Similarity float32
}

// Result is one candidate cluster, consumed once to create a group proposal.
type Result struct {
	Members  []Member
	Centroid []float32
}

// Cluster walks the input in order, using each still-unclustered vector as a
// seed. All unclustered vectors whose similarity to the seed reaches the
// threshold form a candidate; the candidate is kept only if it has at least
// minClusterSize members, otherwise its members stay in the pool for later
// seeds. Every member of every returned cluster appears in exactly one
// cluster.
func Cluster(vectors []similarity.Candidate, threshold float32, minClusterSize int) ([]Result, error) {
	if minClusterSize < 1 {
		return nil, errors.Errorf("invalid min cluster size: %d", minClusterSize)
	}
	if len(vectors) == 0 {
		return []Result{}, nil
	}

	dimension := len(vectors[0].Vector)
	for _, v := range vectors {
		if len(v.Vector) != dimension {
			return nil, errors.Wrapf(store.ErrDimensionMismatch,
				"vector %d has dimension %d, expected %d", v.ID, len(v.Vector), dimension)
		}
	}

	clustered := make([]bool, len(vectors))
	results := []Result{}

	for seedIdx := range vectors {
		if clustered[seedIdx] {
			continue
		}

		gathered := []int{}
		for i := range vectors {
			if clustered[i] {
				continue
			}
			if similarity.Cosine(vectors[seedIdx].Vector, vectors[i].Vector) >= threshold {
				gathered = append(gathered, i)
			}
		}

		if len(gathered) < minClusterSize {
			// Too small; members return to the pool for the next seed.
			continue
		}

		centroid := meanVector(vectors, gathered, dimension)
		members := make([]Member, 0, len(gathered))
		for _, i := range gathered {
			clustered[i] = true
			members = append(members, Member{
				UserID:     vectors[i].ID,
				Similarity: similarity.Cosine(centroid, vectors[i].Vector),
			})
		}

		results = append(results, Result{Members: members, Centroid: centroid})
	}

	return results, nil
}

func meanVector(vectors []similarity.Candidate, indexes []int, dimension int) []float32 {
	centroid := make([]float32, dimension)
	for _, i := range indexes {
		for d, v := range vectors[i].Vector {
			centroid[d] += v
		}
	}
	count := float32(len(indexes))
	for d := range centroid {
		centroid[d] /= count
	}
	return centroid
}
