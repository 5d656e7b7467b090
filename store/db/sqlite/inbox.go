package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/cohort/store"
)

func (d *DB) CreateInbox(ctx context.Context, create *store.Inbox) (*store.Inbox, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if create.Status == "" {
		create.Status = store.InboxUnread
	}

	stmt := `INSERT INTO inbox (receiver_id, kind, group_id, status, created_ts)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt,
		create.ReceiverID,
		create.Kind,
		create.GroupID,
		create.Status,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create inbox")
	}

	return create, nil
}

func (d *DB) ListInboxes(ctx context.Context, find *store.FindInbox) ([]*store.Inbox, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ReceiverID != nil {
		where, args = append(where, "receiver_id = ?"), append(args, *find.ReceiverID)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = ?"), append(args, *find.Kind)
	}
	if find.Status != nil {
		where, args = append(where, "status = ?"), append(args, *find.Status)
	}

	query := `SELECT id, receiver_id, kind, group_id, status, created_ts
		FROM inbox
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list inboxes")
	}
	defer rows.Close()

	list := []*store.Inbox{}
	for rows.Next() {
		var inbox store.Inbox
		if err := rows.Scan(
			&inbox.ID,
			&inbox.ReceiverID,
			&inbox.Kind,
			&inbox.GroupID,
			&inbox.Status,
			&inbox.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan inbox")
		}
		list = append(list, &inbox)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
