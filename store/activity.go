package store

import "context"

// ActivityKind enumerates the raw behavior signals the aggregator folds into
// weighted category scores.
type ActivityKind string

const (
	ActivityDocumentCreated    ActivityKind = "DOCUMENT_CREATED"
	ActivityDocumentReviewed   ActivityKind = "DOCUMENT_REVIEWED"
	ActivityConversationJoined ActivityKind = "CONVERSATION_JOINED"
	ActivityTagUsed            ActivityKind = "TAG_USED"
)

// Activity is a source-of-truth behavior row. Rows are append-only; the
// aggregator reads them, it never mutates them.
type Activity struct {
	ID          int32
	UserID      int32
	Kind        ActivityKind
	Subject     string
	ContentType string
	Tag         string
	CreatedTs   int64
}

// FindActivity is the find condition for activity rows.
type FindActivity struct {
	UserID       *int32
	Kind         *ActivityKind
	CreatedAfter *int64
	Limit        *int
}

func (s *Store) CreateActivity(ctx context.Context, create *Activity) (*Activity, error) {
	return s.driver.CreateActivity(ctx, create)
}

func (s *Store) ListActivities(ctx context.Context, find *FindActivity) ([]*Activity, error) {
	return s.driver.ListActivities(ctx, find)
}
