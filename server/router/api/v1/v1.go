// Package v1 exposes the REST surface consumed by presentation layers.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/server/service/maintenance"
	"github.com/hrygo/cohort/server/service/proposal"
	"github.com/hrygo/cohort/server/service/recommend"
	"github.com/hrygo/cohort/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	RecommendService *recommend.Service
	ProposalService  *proposal.Service
	Maintenance      *maintenance.Orchestrator
}

func NewAPIV1Service(
	p *profile.Profile,
	s *store.Store,
	recommendService *recommend.Service,
	proposalService *proposal.Service,
	orchestrator *maintenance.Orchestrator,
) *APIV1Service {
	return &APIV1Service{
		Profile:          p,
		Store:            s,
		RecommendService: recommendService,
		ProposalService:  proposalService,
		Maintenance:      orchestrator,
	}
}

// Register mounts the v1 routes.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.GET("/users/:id/recommendations", s.GetRecommendations)
	g.GET("/users/:id/proposals", s.GetActiveProposalsForUser)
	g.GET("/groups/:uid/similar-users", s.GetSimilarUsers)
	g.POST("/groups/:uid/respond", s.RespondToProposal)
	g.POST("/events", s.IngestEvent)
}

// httpError maps domain errors onto transport codes. Business-rule
// rejections are conflicts, not system failures.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, store.ErrGroupNotFound), errors.Is(err, store.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNotInvited),
		errors.Is(err, store.ErrAlreadyResponded),
		errors.Is(err, store.ErrGroupNotProposed),
		errors.Is(err, store.ErrProposalExpired):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrDimensionMismatch):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		slog.Error("request failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
