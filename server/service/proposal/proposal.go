// Package proposal owns the group proposal lifecycle: creating proposals
// from cluster results, collecting invite responses, and the single
// transition from PROPOSED to ACTIVE once quorum is reached.
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/cohort/engine/aggregate"
	"github.com/hrygo/cohort/engine/cluster"
	"github.com/hrygo/cohort/engine/metrics"
	"github.com/hrygo/cohort/engine/similarity"
	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/plugin/notifier"
	"github.com/hrygo/cohort/store"
)

// Service coordinates proposal creation and activation.
type Service struct {
	store      *store.Store
	aggregator *aggregate.Aggregator
	notifier   *notifier.Notifier
	exporter   *metrics.Exporter
	profile    *profile.Profile
}

func NewService(
	s *store.Store,
	aggregator *aggregate.Aggregator,
	n *notifier.Notifier,
	exporter *metrics.Exporter,
	p *profile.Profile,
) *Service {
	return &Service{
		store:      s,
		aggregator: aggregator,
		notifier:   n,
		exporter:   exporter,
		profile:    p,
	}
}

// RespondResult is the caller-facing outcome of a proposal response.
type RespondResult struct {
	Success             bool   `json:"success"`
	IsActivated         bool   `json:"isActivated"`
	AcceptedCount       int    `json:"acceptedCount"`
	RemainingToActivate int    `json:"remainingToActivate"`
	Message             string `json:"message"`
}

// respondOutcome classifies a successful response for messaging.
type respondOutcome int

const (
	outcomeDeclined respondOutcome = iota
	outcomeAcceptedWaiting
	outcomeActivated
	outcomeAlreadyActive
)

func (o respondOutcome) String() string {
	switch o {
	case outcomeDeclined:
		return "declined"
	case outcomeAcceptedWaiting:
		return "accepted"
	case outcomeActivated:
		return "activated"
	case outcomeAlreadyActive:
		return "already_active"
	default:
		return "unknown"
	}
}

// Respond applies one member's response to a proposed group. Precondition
// violations surface as typed store errors; a lost activation race is not an
// error, the caller still gets a successful result reflecting the eventual
// state.
func (s *Service) Respond(ctx context.Context, groupUID string, userID int32, accept bool) (*RespondResult, error) {
	group, err := s.store.GetGroup(ctx, &store.FindGroup{UID: &groupUID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load group")
	}
	if group == nil {
		return nil, store.ErrGroupNotFound
	}

	result, err := s.store.RespondToGroupInvite(ctx, &store.RespondToGroupInvite{
		GroupID:              group.ID,
		UserID:               userID,
		Accept:               accept,
		MinMembersToActivate: s.profile.MinMembersToActivate,
		Now:                  time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}

	outcome := classifyOutcome(accept, result)
	s.exporter.CountResponse(outcome.String())
	if result.Activated {
		s.exporter.CountActivation()
	}
	if len(result.JoinedUserIDs) > 0 {
		s.notifyActivation(group, result.JoinedUserIDs)
	}

	remaining := s.profile.MinMembersToActivate - result.AcceptedCount
	if remaining < 0 || result.Activated || result.AlreadyActive {
		remaining = 0
	}

	return &RespondResult{
		Success:             true,
		IsActivated:         result.Activated || result.AlreadyActive,
		AcceptedCount:       result.AcceptedCount,
		RemainingToActivate: remaining,
		Message:             outcomeMessage(outcome, group.Name, remaining),
	}, nil
}

func classifyOutcome(accept bool, result *store.GroupInviteResult) respondOutcome {
	switch {
	case !accept:
		return outcomeDeclined
	case result.Activated:
		return outcomeActivated
	case result.AlreadyActive:
		return outcomeAlreadyActive
	default:
		return outcomeAcceptedWaiting
	}
}

func outcomeMessage(outcome respondOutcome, groupName string, remaining int) string {
	switch outcome {
	case outcomeDeclined:
		return fmt.Sprintf("You declined the invitation to %q.", groupName)
	case outcomeActivated:
		return fmt.Sprintf("%q is now active. Welcome aboard!", groupName)
	case outcomeAlreadyActive:
		return fmt.Sprintf("%q was already activated. You have joined it.", groupName)
	case outcomeAcceptedWaiting:
		return fmt.Sprintf("You accepted the invitation to %q. %d more acceptance(s) needed to activate.", groupName, remaining)
	default:
		return "Response recorded."
	}
}

// notifyActivation writes one inbox row per joined member and posts the
// webhook best effort. Notification failures never reach the responder.
func (s *Service) notifyActivation(group *store.Group, joinedUserIDs []int32) {
	go func() {
		ctx := context.Background()
		for _, userID := range joinedUserIDs {
			if _, err := s.store.CreateInbox(ctx, &store.Inbox{
				ReceiverID: userID,
				Kind:       store.InboxGroupActivated,
				GroupID:    group.ID,
			}); err != nil {
				slog.Error("failed to create activation inbox", "groupID", group.ID, "userID", userID, "error", err)
			}

			if !s.notifier.Enabled() {
				continue
			}
			if err := s.notifier.Post(&notifier.Payload{
				Kind:       string(store.InboxGroupActivated),
				ReceiverID: userID,
				GroupUID:   group.UID,
				GroupName:  group.Name,
			}); err != nil {
				s.exporter.CountNotification("error")
				slog.Error("failed to post activation notification", "groupID", group.ID, "userID", userID, "error", err)
			} else {
				s.exporter.CountNotification("ok")
			}
		}
	}()
}

// PendingProposalsForUser lists PROPOSED groups where the user's invite is
// still pending and the proposal has not expired.
func (s *Service) PendingProposalsForUser(ctx context.Context, userID int32) ([]*store.Group, error) {
	status := store.GroupProposed
	memberStatus := store.InvitePending
	groups, err := s.store.ListGroups(ctx, &store.FindGroup{
		Status:       &status,
		MemberUserID: &userID,
		MemberStatus: &memberStatus,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	pending := []*store.Group{}
	for _, group := range groups {
		if group.ExpiresTs != nil && *group.ExpiresTs < now {
			continue
		}
		pending = append(pending, group)
	}
	return pending, nil
}

// CreateProposalsFromClusters clusters the current user vector population and
// creates one PROPOSED group per kept cluster, inviting every member. Users
// already holding a pending invite are skipped so overlapping sweeps don't
// pile proposals onto the same people.
func (s *Service) CreateProposalsFromClusters(ctx context.Context) ([]*store.Group, error) {
	kind := store.EntityUser
	vectors, err := s.store.ListEntityVectors(ctx, &store.FindEntityVector{Kind: &kind})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user vectors")
	}

	invited, err := s.usersWithPendingInvites(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]similarity.Candidate, 0, len(vectors))
	for _, v := range vectors {
		if invited[v.EntityID] {
			continue
		}
		candidates = append(candidates, similarity.Candidate{ID: v.EntityID, Vector: v.Embedding})
	}

	results, err := cluster.Cluster(candidates, s.profile.ClusterThreshold, s.profile.MinClusterSize)
	if err != nil {
		return nil, errors.Wrap(err, "clustering failed")
	}

	created := []*store.Group{}
	for _, result := range results {
		group, err := s.createProposal(ctx, result)
		if err != nil {
			slog.Error("failed to create proposal from cluster", "error", err)
			continue
		}
		created = append(created, group)
	}
	return created, nil
}

func (s *Service) usersWithPendingInvites(ctx context.Context) (map[int32]bool, error) {
	status := store.GroupProposed
	groups, err := s.store.ListGroups(ctx, &store.FindGroup{Status: &status})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list proposed groups")
	}
	invited := map[int32]bool{}
	for _, group := range groups {
		for _, member := range group.Members {
			if member.InviteStatus == store.InvitePending {
				invited[member.UserID] = true
			}
		}
	}
	return invited, nil
}

func (s *Service) createProposal(ctx context.Context, result cluster.Result) (*store.Group, error) {
	subject, tags := s.dominantCategories(ctx, result)

	name := "Study circle"
	if subject != nil {
		name = fmt.Sprintf("Study circle: %s", *subject)
	}

	expiresTs := time.Now().Add(s.profile.ProposalTTL).Unix()
	members := make([]*store.GroupMember, 0, len(result.Members))
	for _, member := range result.Members {
		members = append(members, &store.GroupMember{UserID: member.UserID})
	}

	group, err := s.store.CreateGroup(ctx, &store.Group{
		UID:       shortuuid.New(),
		Name:      name,
		Status:    store.GroupProposed,
		Subject:   subject,
		Tags:      tags,
		ExpiresTs: &expiresTs,
		Members:   members,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create proposal group")
	}

	for _, member := range group.Members {
		if _, err := s.store.CreateInbox(ctx, &store.Inbox{
			ReceiverID: member.UserID,
			Kind:       store.InboxGroupInvited,
			GroupID:    group.ID,
		}); err != nil {
			slog.Error("failed to create invite inbox", "groupID", group.ID, "userID", member.UserID, "error", err)
		}
	}

	return group, nil
}

// dominantCategories picks the strongest shared subject and up to three
// shared tags across the cluster members, for a recognizable proposal.
func (s *Service) dominantCategories(ctx context.Context, result cluster.Result) (*string, []string) {
	subjectScores := map[string]float64{}
	tagScores := map[string]float64{}

	for _, member := range result.Members {
		categories, err := s.aggregator.UserCategories(ctx, member.UserID)
		if err != nil {
			slog.Warn("failed to aggregate member categories", "userID", member.UserID, "error", err)
			continue
		}
		for _, category := range categories {
			if name, ok := aggregate.SubjectName(category.Name); ok {
				subjectScores[name] += category.Score
			}
			if name, ok := aggregate.TagName(category.Name); ok {
				tagScores[name] += category.Score
			}
		}
	}

	var subject *string
	if best := topName(subjectScores); best != "" {
		subject = &best
	}
	tags := topNames(tagScores, 3)
	return subject, tags
}

func topName(scores map[string]float64) string {
	names := topNames(scores, 1)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func topNames(scores map[string]float64, limit int) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	// Highest score first; ties resolved by name for determinism.
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

// RunSweep periodically re-clusters the population to seed new proposals.
// It blocks until ctx is done and is meant to run in its own goroutine.
func (s *Service) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			created, err := s.CreateProposalsFromClusters(ctx)
			if err != nil {
				slog.Error("proposal sweep failed", "error", err)
				continue
			}
			if len(created) > 0 {
				slog.Info("proposal sweep created groups", "count", len(created))
			}
		}
	}
}
