package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/cohort/store"
)

func (d *DB) CreateGroup(ctx context.Context, create *store.Group) (*store.Group, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	create.UpdatedTs = now
	if create.Status == "" {
		create.Status = store.GroupProposed
	}

	tagsJSON, err := json.Marshal(create.Tags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal group tags")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt := `
		INSERT INTO study_group (uid, name, status, subject, tags, expires_ts, created_ts, updated_ts)
		VALUES (` + placeholders(8) + `)
		RETURNING id
	`

	if err := tx.QueryRowContext(ctx, stmt,
		create.UID,
		create.Name,
		create.Status,
		create.Subject,
		string(tagsJSON),
		create.ExpiresTs,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create group")
	}

	for _, member := range create.Members {
		member.GroupID = create.ID
		if member.InviteStatus == "" {
			member.InviteStatus = store.InvitePending
		}
		if member.RowStatus == "" {
			member.RowStatus = store.Normal
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_member (group_id, user_id, invite_status, responded_ts, row_status) VALUES (`+placeholders(5)+`)`,
			member.GroupID, member.UserID, member.InviteStatus, member.RespondedTs, member.RowStatus,
		); err != nil {
			return nil, errors.Wrap(err, "failed to create group member")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit group creation")
	}

	return create, nil
}

func (d *DB) ListGroups(ctx context.Context, find *store.FindGroup) ([]*store.Group, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "g.id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "g.uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.Status != nil {
		where, args = append(where, "g.status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}
	if find.MemberUserID != nil {
		cond := "g.id IN (SELECT group_id FROM group_member WHERE user_id = " + placeholder(len(args)+1) + " AND row_status = 'NORMAL'"
		args = append(args, *find.MemberUserID)
		if find.MemberStatus != nil {
			cond += " AND invite_status = " + placeholder(len(args)+1)
			args = append(args, *find.MemberStatus)
		}
		cond += ")"
		where = append(where, cond)
	}

	query := `
		SELECT g.id, g.uid, g.name, g.status, g.subject, g.tags, g.expires_ts, g.created_ts, g.updated_ts
		FROM study_group g
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY g.created_ts DESC, g.id DESC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list groups")
	}
	defer rows.Close()

	list := []*store.Group{}
	for rows.Next() {
		var group store.Group
		var tagsJSON string
		if err := rows.Scan(
			&group.ID,
			&group.UID,
			&group.Name,
			&group.Status,
			&group.Subject,
			&tagsJSON,
			&group.ExpiresTs,
			&group.CreatedTs,
			&group.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan group")
		}
		if err := json.Unmarshal([]byte(tagsJSON), &group.Tags); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal group tags")
		}
		list = append(list, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, group := range list {
		members, err := d.listGroupMembers(ctx, group.ID, find.IncludeArchived)
		if err != nil {
			return nil, err
		}
		group.Members = members
	}

	return list, nil
}

func (d *DB) listGroupMembers(ctx context.Context, groupID int32, includeArchived bool) ([]*store.GroupMember, error) {
	query := `SELECT group_id, user_id, invite_status, responded_ts, row_status
		FROM group_member
		WHERE group_id = $1`
	if !includeArchived {
		query += ` AND row_status = 'NORMAL'`
	}
	query += ` ORDER BY user_id ASC`

	rows, err := d.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list group members")
	}
	defer rows.Close()

	members := []*store.GroupMember{}
	for rows.Next() {
		var member store.GroupMember
		if err := rows.Scan(
			&member.GroupID,
			&member.UserID,
			&member.InviteStatus,
			&member.RespondedTs,
			&member.RowStatus,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan group member")
		}
		members = append(members, &member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (d *DB) UpdateGroup(ctx context.Context, update *store.UpdateGroup) (*store.Group, error) {
	set, args := []string{}, []any{}
	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *update.Status)
	}
	if update.ExpiresTs != nil {
		set, args = append(set, "expires_ts = "+placeholder(len(args)+1)), append(args, *update.ExpiresTs)
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, time.Now().Unix())
	args = append(args, update.ID)

	stmt := `UPDATE study_group SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to update group")
	}

	groups, err := d.ListGroups(ctx, &store.FindGroup{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, store.ErrGroupNotFound
	}
	return groups[0], nil
}

// RespondToGroupInvite applies a member's response and, on quorum, performs
// the activation transition. The group row is locked FOR UPDATE so concurrent
// responders for the same group serialize; the status flip additionally
// guards on the prior status, making activation at-most-once. A responder
// that finds the group already ACTIVE while still PENDING lost the activation
// race: an accept joins them directly, and the caller still reports success.
func (d *DB) RespondToGroupInvite(ctx context.Context, respond *store.RespondToGroupInvite) (*store.GroupInviteResult, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var groupStatus store.GroupStatus
	var expiresTs sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT status, expires_ts FROM study_group WHERE id = $1 FOR UPDATE`,
		respond.GroupID,
	).Scan(&groupStatus, &expiresTs)
	if err == sql.ErrNoRows {
		return nil, store.ErrGroupNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load group")
	}

	var memberStatus store.InviteStatus
	var memberRowStatus store.RowStatus
	err = tx.QueryRowContext(ctx,
		`SELECT invite_status, row_status FROM group_member WHERE group_id = $1 AND user_id = $2`,
		respond.GroupID, respond.UserID,
	).Scan(&memberStatus, &memberRowStatus)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotInvited
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load group member")
	}

	if memberStatus != store.InvitePending {
		return nil, store.ErrAlreadyResponded
	}

	if groupStatus == store.GroupActive {
		result, err := resolveLateResponse(ctx, tx, respond)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, errors.Wrap(err, "failed to commit late response")
		}
		return result, nil
	}
	if groupStatus != store.GroupProposed {
		return nil, store.ErrGroupNotProposed
	}
	if expiresTs.Valid && expiresTs.Int64 < respond.Now {
		return nil, store.ErrProposalExpired
	}

	newStatus := store.InviteDeclined
	if respond.Accept {
		newStatus = store.InviteAccepted
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE group_member SET invite_status = $1, responded_ts = $2 WHERE group_id = $3 AND user_id = $4`,
		newStatus, respond.Now, respond.GroupID, respond.UserID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update member invite status")
	}

	var acceptedCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_member WHERE group_id = $1 AND invite_status = $2 AND row_status = 'NORMAL'`,
		respond.GroupID, store.InviteAccepted,
	).Scan(&acceptedCount); err != nil {
		return nil, errors.Wrap(err, "failed to count accepted members")
	}

	result := &store.GroupInviteResult{AcceptedCount: acceptedCount}

	if respond.Accept && acceptedCount >= respond.MinMembersToActivate {
		res, err := tx.ExecContext(ctx,
			`UPDATE study_group SET status = $1, expires_ts = NULL, updated_ts = $2 WHERE id = $3 AND status = $4`,
			store.GroupActive, respond.Now, respond.GroupID, store.GroupProposed,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to activate group")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read activation result")
		}
		if affected == 1 {
			joined, err := promoteAndPrune(ctx, tx, respond.GroupID)
			if err != nil {
				return nil, err
			}
			result.Activated = true
			result.JoinedUserIDs = joined
		} else {
			result.AlreadyActive = true
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit invite response")
	}
	return result, nil
}

func resolveLateResponse(ctx context.Context, tx *sql.Tx, respond *store.RespondToGroupInvite) (*store.GroupInviteResult, error) {
	result := &store.GroupInviteResult{AlreadyActive: true}

	newStatus := store.InviteDeclined
	rowStatus := store.Archived
	if respond.Accept {
		newStatus = store.InviteJoined
		rowStatus = store.Normal
		result.JoinedUserIDs = []int32{respond.UserID}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE group_member SET invite_status = $1, responded_ts = $2, row_status = $3 WHERE group_id = $4 AND user_id = $5`,
		newStatus, respond.Now, rowStatus, respond.GroupID, respond.UserID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to resolve late invite response")
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_member WHERE group_id = $1 AND invite_status IN ($2, $3) AND row_status = 'NORMAL'`,
		respond.GroupID, store.InviteAccepted, store.InviteJoined,
	).Scan(&result.AcceptedCount); err != nil {
		return nil, errors.Wrap(err, "failed to count members")
	}

	return result, nil
}

func promoteAndPrune(ctx context.Context, tx *sql.Tx, groupID int32) ([]int32, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM group_member WHERE group_id = $1 AND invite_status = $2 AND row_status = 'NORMAL' ORDER BY user_id ASC`,
		groupID, store.InviteAccepted,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list accepted members")
	}
	defer rows.Close()

	joined := []int32{}
	for rows.Next() {
		var userID int32
		if err := rows.Scan(&userID); err != nil {
			return nil, errors.Wrap(err, "failed to scan accepted member")
		}
		joined = append(joined, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE group_member SET invite_status = $1 WHERE group_id = $2 AND invite_status = $3 AND row_status = 'NORMAL'`,
		store.InviteJoined, groupID, store.InviteAccepted,
	); err != nil {
		return nil, errors.Wrap(err, "failed to promote accepted members")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE group_member SET row_status = $1 WHERE group_id = $2 AND invite_status IN ($3, $4)`,
		store.Archived, groupID, store.InvitePending, store.InviteDeclined,
	); err != nil {
		return nil, errors.Wrap(err, "failed to prune unresponsive members")
	}

	return joined, nil
}
