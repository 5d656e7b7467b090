package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type respondRequest struct {
	UserID int32 `json:"userId"`
	Accept bool  `json:"accept"`
}

type proposalSummary struct {
	UID       string   `json:"uid"`
	Name      string   `json:"name"`
	Subject   *string  `json:"subject,omitempty"`
	Tags      []string `json:"tags"`
	ExpiresTs *int64   `json:"expiresTs,omitempty"`
}

// RespondToProposal records a member's accept/decline and reports the
// activation outcome. Precondition violations return typed conflicts.
func (s *APIV1Service) RespondToProposal(c echo.Context) error {
	var req respondRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.UserID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}

	result, err := s.ProposalService.Respond(c.Request().Context(), c.Param("uid"), req.UserID, req.Accept)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetActiveProposalsForUser lists proposals awaiting the user's response.
func (s *APIV1Service) GetActiveProposalsForUser(c echo.Context) error {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	groups, err := s.ProposalService.PendingProposalsForUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}

	summaries := make([]*proposalSummary, 0, len(groups))
	for _, group := range groups {
		summaries = append(summaries, &proposalSummary{
			UID:       group.UID,
			Name:      group.Name,
			Subject:   group.Subject,
			Tags:      group.Tags,
			ExpiresTs: group.ExpiresTs,
		})
	}
	return c.JSON(http.StatusOK, summaries)
}
