package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/cohort/store"
)

func (d *DB) CreateActivity(ctx context.Context, create *store.Activity) (*store.Activity, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	stmt := `
		INSERT INTO activity (user_id, kind, subject, content_type, tag, created_ts)
		VALUES (` + placeholders(6) + `)
		RETURNING id
	`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.UserID,
		create.Kind,
		create.Subject,
		create.ContentType,
		create.Tag,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create activity")
	}

	return create, nil
}

func (d *DB) ListActivities(ctx context.Context, find *store.FindActivity) ([]*store.Activity, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = "+placeholder(len(args)+1)), append(args, *find.Kind)
	}
	if find.CreatedAfter != nil {
		where, args = append(where, "created_ts > "+placeholder(len(args)+1)), append(args, *find.CreatedAfter)
	}

	query := `
		SELECT id, user_id, kind, subject, content_type, tag, created_ts
		FROM activity
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list activities")
	}
	defer rows.Close()

	list := []*store.Activity{}
	for rows.Next() {
		var activity store.Activity
		if err := rows.Scan(
			&activity.ID,
			&activity.UserID,
			&activity.Kind,
			&activity.Subject,
			&activity.ContentType,
			&activity.Tag,
			&activity.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan activity")
		}
		list = append(list, &activity)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
