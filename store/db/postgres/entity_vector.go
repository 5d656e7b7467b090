package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/cohort/store"
)

// UpsertEntityVector inserts or overwrites an entity vector.
func (d *DB) UpsertEntityVector(ctx context.Context, upsert *store.EntityVector) (*store.EntityVector, error) {
	stmt := `
		INSERT INTO entity_vector (kind, entity_id, embedding, dimension, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (kind, entity_id)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			dimension = EXCLUDED.dimension,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, updated_ts
	`

	upsert.UpdatedTs = time.Now().Unix()
	vector := pgvector.NewVector(upsert.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.Kind,
		upsert.EntityID,
		vector,
		upsert.Dimension,
		upsert.UpdatedTs,
	).Scan(&upsert.ID, &upsert.UpdatedTs)

	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert entity vector")
	}

	return upsert, nil
}

// ListEntityVectors lists entity vectors.
func (d *DB) ListEntityVectors(ctx context.Context, find *store.FindEntityVector) ([]*store.EntityVector, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.Kind != nil {
		where, args = append(where, "kind = "+placeholder(len(args)+1)), append(args, *find.Kind)
	}
	if find.EntityID != nil {
		where, args = append(where, "entity_id = "+placeholder(len(args)+1)), append(args, *find.EntityID)
	}

	query := `
		SELECT id, kind, entity_id, embedding, dimension, updated_ts
		FROM entity_vector
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY entity_id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list entity vectors")
	}
	defer rows.Close()

	list := []*store.EntityVector{}
	for rows.Next() {
		var entityVector store.EntityVector
		var vector pgvector.Vector
		err := rows.Scan(
			&entityVector.ID,
			&entityVector.Kind,
			&entityVector.EntityID,
			&vector,
			&entityVector.Dimension,
			&entityVector.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan entity vector")
		}
		entityVector.Embedding = vector.Slice()
		list = append(list, &entityVector)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
