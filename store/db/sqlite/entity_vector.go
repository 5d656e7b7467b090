package sqlite

import (
	"context"
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/cohort/store"
)

// UpsertEntityVector inserts or overwrites an entity vector.
// The vector is stored as a little-endian float32 BLOB.
func (d *DB) UpsertEntityVector(ctx context.Context, upsert *store.EntityVector) (*store.EntityVector, error) {
	vectorBLOB := float32ArrayToBLOB(upsert.Embedding)
	upsert.UpdatedTs = time.Now().Unix()

	stmt := `INSERT INTO entity_vector (kind, entity_id, embedding, dimension, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, entity_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_ts = excluded.updated_ts
		RETURNING id, updated_ts`

	err := d.db.QueryRowContext(ctx, stmt,
		upsert.Kind,
		upsert.EntityID,
		vectorBLOB,
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
		where, args = append(where, "kind = ?"), append(args, *find.Kind)
	}
	if find.EntityID != nil {
		where, args = append(where, "entity_id = ?"), append(args, *find.EntityID)
	}

	query := `SELECT id, kind, entity_id, embedding, dimension, updated_ts
		FROM entity_vector
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY entity_id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list entity vectors")
	}
	defer rows.Close()

	list := []*store.EntityVector{}
	for rows.Next() {
		var vector store.EntityVector
		var vectorBLOB []byte

		err := rows.Scan(
			&vector.ID,
			&vector.Kind,
			&vector.EntityID,
			&vectorBLOB,
			&vector.Dimension,
			&vector.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan entity vector")
		}

		vector.Embedding, err = blobToFloat32Array(vectorBLOB, vector.Dimension)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert embedding BLOB to array")
		}

		list = append(list, &vector)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// float32ArrayToBLOB converts a []float32 to a little-endian BLOB.
func float32ArrayToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// blobToFloat32Array converts a BLOB back to a float32 array.
// This is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte, dimension int) ([]float32, error) {
	expectedLen := dimension * 4
	if len(blob) != expectedLen {
		return nil, errors.Errorf("invalid BLOB length: got %d, want %d", len(blob), expectedLen)
	}

	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}
