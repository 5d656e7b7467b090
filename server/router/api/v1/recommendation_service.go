package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/cohort/server/service/recommend"
	"github.com/hrygo/cohort/store"
)

// GetRecommendations returns ranked group summaries for a user.
// The endpoint degrades to an empty list if the vector store is unavailable;
// recommendations are a best-effort surface.
func (s *APIV1Service) GetRecommendations(c echo.Context) error {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	summaries, err := s.RecommendService.GroupsForUser(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrDimensionMismatch) {
			return httpError(err)
		}
		slog.Error("failed to compute recommendations", "userID", userID, "error", err)
		return c.JSON(http.StatusOK, []*recommend.GroupSummary{})
	}
	return c.JSON(http.StatusOK, summaries)
}

// GetSimilarUsers returns ranked user summaries for a group.
func (s *APIV1Service) GetSimilarUsers(c echo.Context) error {
	summaries, err := s.RecommendService.UsersForGroup(c.Request().Context(), c.Param("uid"))
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) || errors.Is(err, store.ErrDimensionMismatch) {
			return httpError(err)
		}
		slog.Error("failed to compute similar users", "groupUID", c.Param("uid"), "error", err)
		return c.JSON(http.StatusOK, []*recommend.UserSummary{})
	}
	return c.JSON(http.StatusOK, summaries)
}

func parseID(raw string) (int32, error) {
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid id: %s", raw)
	}
	return int32(id), nil
}
