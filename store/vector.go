package store

import (
	"context"

	"github.com/pkg/errors"
)

// EntityKind distinguishes the owner of a behavioral vector.
type EntityKind string

const (
	EntityUser  EntityKind = "USER"
	EntityGroup EntityKind = "GROUP"
)

// EntityVector is the latest behavioral vector for a user or group. One row
// per (kind, entity id); recomputation overwrites the row wholesale,
// last-write-wins. Rows are never partially mutated.
type EntityVector struct {
	ID        int32
	Kind      EntityKind
	EntityID  int32
	Embedding []float32
	Dimension int
	UpdatedTs int64
}

// FindEntityVector is the find condition for entity vectors.
type FindEntityVector struct {
	Kind     *EntityKind
	EntityID *int32
}

// Validate checks the vector before persistence.
func (v *EntityVector) Validate() error {
	if v.EntityID <= 0 {
		return errors.Errorf("invalid entity id: %d", v.EntityID)
	}
	if v.Kind != EntityUser && v.Kind != EntityGroup {
		return errors.Errorf("invalid entity kind: %s", v.Kind)
	}
	if len(v.Embedding) == 0 {
		return errors.New("embedding cannot be empty")
	}
	if v.Dimension != len(v.Embedding) {
		return errors.Wrapf(ErrDimensionMismatch, "declared %d, actual %d", v.Dimension, len(v.Embedding))
	}
	return nil
}

// UpsertEntityVector inserts or overwrites the vector for (kind, entity id).
func (s *Store) UpsertEntityVector(ctx context.Context, upsert *EntityVector) (*EntityVector, error) {
	if err := upsert.Validate(); err != nil {
		return nil, err
	}
	return s.driver.UpsertEntityVector(ctx, upsert)
}

// GetEntityVector returns the latest vector for an entity, or nil when none
// has been computed yet.
func (s *Store) GetEntityVector(ctx context.Context, kind EntityKind, entityID int32) (*EntityVector, error) {
	list, err := s.driver.ListEntityVectors(ctx, &FindEntityVector{Kind: &kind, EntityID: &entityID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListEntityVectors lists vectors, typically all vectors of one kind for
// similarity ranking or clustering.
func (s *Store) ListEntityVectors(ctx context.Context, find *FindEntityVector) ([]*EntityVector, error) {
	return s.driver.ListEntityVectors(ctx, find)
}
