package store

import "context"

// InboxKind enumerates the notification kinds this service emits.
type InboxKind string

const (
	InboxGroupInvited   InboxKind = "GROUP_INVITED"
	InboxGroupActivated InboxKind = "GROUP_ACTIVATED"
)

// InboxStatus is the read state of a notification.
type InboxStatus string

const (
	InboxUnread InboxStatus = "UNREAD"
	InboxRead   InboxStatus = "READ"
)

// Inbox is a persisted notification row. Delivery beyond the inbox row
// (webhook post) is best effort and owned by the notifier plugin.
type Inbox struct {
	ID         int32
	ReceiverID int32
	Kind       InboxKind
	GroupID    int32
	Status     InboxStatus
	CreatedTs  int64
}

// FindInbox is the find condition for inbox rows.
type FindInbox struct {
	ReceiverID *int32
	Kind       *InboxKind
	Status     *InboxStatus
}

func (s *Store) CreateInbox(ctx context.Context, create *Inbox) (*Inbox, error) {
	return s.driver.CreateInbox(ctx, create)
}

func (s *Store) ListInboxes(ctx context.Context, find *FindInbox) ([]*Inbox, error) {
	return s.driver.ListInboxes(ctx, find)
}
