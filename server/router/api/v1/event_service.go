package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cohort/store"
)

// Event types accepted by IngestEvent. Delivery is at-least-once; handlers
// are idempotent since recomputing the same vector twice is harmless.
const (
	eventUserActivity    = "user_activity"
	eventContentReviewed = "content_reviewed"
	eventProfileChanged  = "profile_changed"
	eventGroupChanged    = "group_changed"
)

type eventRequest struct {
	Type string `json:"type"`

	// user_activity / profile_changed
	UserID       int32  `json:"userId,omitempty"`
	ActivityType string `json:"activityType,omitempty"`
	Subject      string `json:"subject,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	Tag          string `json:"tag,omitempty"`

	// content_reviewed. Outcome fields are accepted for forward compatibility
	// but do not influence the refresh; the activity row is what counts.
	CreatorID  int32  `json:"creatorId,omitempty"`
	ReviewerID int32  `json:"reviewerId,omitempty"`
	ContentID  int32  `json:"contentId,omitempty"`
	OldOutcome string `json:"oldOutcome,omitempty"`
	NewOutcome string `json:"newOutcome,omitempty"`

	// group_changed
	GroupID int32 `json:"groupId,omitempty"`
}

// IngestEvent consumes a domain event and triggers the affected vector
// refreshes. The refresh is detached: this endpoint answers as soon as the
// event is recorded, never waiting on recomputation.
func (s *APIV1Service) IngestEvent(c echo.Context) error {
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	ctx := c.Request().Context()

	switch req.Type {
	case eventUserActivity:
		if req.UserID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
		}
		kind := store.ActivityKind(req.ActivityType)
		if _, err := s.Store.CreateActivity(ctx, &store.Activity{
			UserID:      req.UserID,
			Kind:        kind,
			Subject:     req.Subject,
			ContentType: req.ContentType,
			Tag:         req.Tag,
		}); err != nil {
			return httpError(err)
		}
		s.Maintenance.OnUserActivity(req.UserID)

	case eventContentReviewed:
		if req.CreatorID <= 0 || req.ReviewerID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "creatorId and reviewerId are required")
		}
		if _, err := s.Store.CreateActivity(ctx, &store.Activity{
			UserID:      req.ReviewerID,
			Kind:        store.ActivityDocumentReviewed,
			Subject:     req.Subject,
			ContentType: req.ContentType,
		}); err != nil {
			return httpError(err)
		}
		s.Maintenance.OnUserActivity(req.CreatorID)
		s.Maintenance.OnUserActivity(req.ReviewerID)

	case eventProfileChanged:
		if req.UserID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
		}
		s.Maintenance.OnUserActivity(req.UserID)

	case eventGroupChanged:
		if req.GroupID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "groupId is required")
		}
		s.Maintenance.OnGroupChanged(req.GroupID)

	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown event type")
	}

	return c.NoContent(http.StatusAccepted)
}
