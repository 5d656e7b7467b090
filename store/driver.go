package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Activity model related methods.
	CreateActivity(ctx context.Context, create *Activity) (*Activity, error)
	ListActivities(ctx context.Context, find *FindActivity) ([]*Activity, error)

	// EntityVector model related methods.
	UpsertEntityVector(ctx context.Context, upsert *EntityVector) (*EntityVector, error)
	ListEntityVectors(ctx context.Context, find *FindEntityVector) ([]*EntityVector, error)

	// Group model related methods.
	CreateGroup(ctx context.Context, create *Group) (*Group, error)
	ListGroups(ctx context.Context, find *FindGroup) ([]*Group, error)
	UpdateGroup(ctx context.Context, update *UpdateGroup) (*Group, error)

	// RespondToGroupInvite runs the full respond-count-activate sequence in
	// one transaction. The PROPOSED -> ACTIVE flip is a conditional update on
	// the prior status, so at most one caller ever performs activation no
	// matter how many concurrent accepts arrive once quorum is reached.
	RespondToGroupInvite(ctx context.Context, respond *RespondToGroupInvite) (*GroupInviteResult, error)

	// Inbox model related methods.
	CreateInbox(ctx context.Context, create *Inbox) (*Inbox, error)
	ListInboxes(ctx context.Context, find *FindInbox) ([]*Inbox, error)
}
