package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cohort/store"
)

func TestUpsertEntityVectorRoundtrip(t *testing.T) {
	driver := newTestDB(t)
	ctx := context.Background()

	embedding := []float32{0.25, -0.5, 0.125, 1.0}
	_, err := driver.UpsertEntityVector(ctx, &store.EntityVector{
		Kind:      store.EntityUser,
		EntityID:  7,
		Embedding: embedding,
		Dimension: 4,
	})
	require.NoError(t, err)

	kind := store.EntityUser
	entityID := int32(7)
	list, err := driver.ListEntityVectors(ctx, &store.FindEntityVector{Kind: &kind, EntityID: &entityID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, embedding, list[0].Embedding)
	assert.Equal(t, 4, list[0].Dimension)
}

func TestUpsertEntityVectorOverwrites(t *testing.T) {
	driver := newTestDB(t)
	ctx := context.Background()

	for _, embedding := range [][]float32{{1, 0}, {0, 1}} {
		_, err := driver.UpsertEntityVector(ctx, &store.EntityVector{
			Kind:      store.EntityGroup,
			EntityID:  3,
			Embedding: embedding,
			Dimension: 2,
		})
		require.NoError(t, err)
	}

	kind := store.EntityGroup
	list, err := driver.ListEntityVectors(ctx, &store.FindEntityVector{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, list, 1, "one row per (kind, entity id), last write wins")
	assert.Equal(t, []float32{0, 1}, list[0].Embedding)
}

func TestListEntityVectorsFiltersByKind(t *testing.T) {
	driver := newTestDB(t)
	ctx := context.Background()

	for entityID, kind := range map[int32]store.EntityKind{
		1: store.EntityUser,
		2: store.EntityGroup,
	} {
		_, err := driver.UpsertEntityVector(ctx, &store.EntityVector{
			Kind:      kind,
			EntityID:  entityID,
			Embedding: []float32{1},
			Dimension: 1,
		})
		require.NoError(t, err)
	}

	kind := store.EntityUser
	list, err := driver.ListEntityVectors(ctx, &store.FindEntityVector{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(1), list[0].EntityID)
}

func TestBlobConversionRejectsBadLength(t *testing.T) {
	_, err := blobToFloat32Array([]byte{1, 2, 3}, 1)
	assert.Error(t, err)
}
