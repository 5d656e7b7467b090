// Package recommend serves similarity-ranked group and user suggestions
// against the latest stored vectors. A recommendation may be served against a
// slightly stale vector; that is accepted staleness, not a bug.
package recommend

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/cohort/engine/similarity"
	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/store"
)

// Service ranks candidates from the vector store.
type Service struct {
	store   *store.Store
	profile *profile.Profile
}

func NewService(s *store.Store, p *profile.Profile) *Service {
	return &Service{store: s, profile: p}
}

// GroupSummary is one recommended group.
type GroupSummary struct {
	UID        string   `json:"uid"`
	Name       string   `json:"name"`
	Subject    *string  `json:"subject,omitempty"`
	Tags       []string `json:"tags"`
	Similarity float32  `json:"similarity"`
	Rank       int      `json:"rank"`
}

// UserSummary is one recommended user.
type UserSummary struct {
	ID         int32   `json:"id"`
	Username   string  `json:"username"`
	Nickname   string  `json:"nickname"`
	Similarity float32 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// GroupsForUser recommends active groups the user is not already part of.
// A user without a computed vector gets an empty list, not an error.
func (s *Service) GroupsForUser(ctx context.Context, userID int32) ([]*GroupSummary, error) {
	queryVector, err := s.store.GetEntityVector(ctx, store.EntityUser, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load user vector")
	}
	if queryVector == nil {
		return []*GroupSummary{}, nil
	}

	status := store.GroupActive
	groups, err := s.store.ListGroups(ctx, &store.FindGroup{Status: &status})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active groups")
	}

	byID := map[int32]*store.Group{}
	candidateIDs := map[int32]bool{}
	for _, group := range groups {
		if isMember(group, userID) {
			continue
		}
		byID[group.ID] = group
		candidateIDs[group.ID] = true
	}

	kind := store.EntityGroup
	vectors, err := s.store.ListEntityVectors(ctx, &store.FindEntityVector{Kind: &kind})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list group vectors")
	}

	candidates := make([]similarity.Candidate, 0, len(vectors))
	for _, v := range vectors {
		if !candidateIDs[v.EntityID] {
			continue
		}
		candidates = append(candidates, similarity.Candidate{ID: v.EntityID, Vector: v.Embedding})
	}

	ranked, err := similarity.Recommend(queryVector.Embedding, candidates, s.profile.RecommendTopK, s.profile.MinSimilarity)
	if err != nil {
		return nil, err
	}

	summaries := make([]*GroupSummary, 0, len(ranked))
	for _, r := range ranked {
		group := byID[r.ID]
		summaries = append(summaries, &GroupSummary{
			UID:        group.UID,
			Name:       group.Name,
			Subject:    group.Subject,
			Tags:       group.Tags,
			Similarity: r.Similarity,
			Rank:       r.Rank,
		})
	}
	return summaries, nil
}

// UsersForGroup recommends users similar to the group's vector, excluding
// existing members. Used to suggest additional invitees.
func (s *Service) UsersForGroup(ctx context.Context, groupUID string) ([]*UserSummary, error) {
	group, err := s.store.GetGroup(ctx, &store.FindGroup{UID: &groupUID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load group")
	}
	if group == nil {
		return nil, store.ErrGroupNotFound
	}

	queryVector, err := s.store.GetEntityVector(ctx, store.EntityGroup, group.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load group vector")
	}
	if queryVector == nil {
		return []*UserSummary{}, nil
	}

	kind := store.EntityUser
	vectors, err := s.store.ListEntityVectors(ctx, &store.FindEntityVector{Kind: &kind})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user vectors")
	}

	members := map[int32]bool{}
	for _, member := range group.Members {
		members[member.UserID] = true
	}

	candidates := make([]similarity.Candidate, 0, len(vectors))
	for _, v := range vectors {
		if members[v.EntityID] {
			continue
		}
		candidates = append(candidates, similarity.Candidate{ID: v.EntityID, Vector: v.Embedding})
	}

	ranked, err := similarity.Recommend(queryVector.Embedding, candidates, s.profile.RecommendTopK, s.profile.MinSimilarity)
	if err != nil {
		return nil, err
	}

	summaries := make([]*UserSummary, 0, len(ranked))
	for _, r := range ranked {
		userID := r.ID
		user, err := s.store.GetUser(ctx, &store.FindUser{ID: &userID})
		if err != nil {
			return nil, errors.Wrap(err, "failed to load user")
		}
		if user == nil {
			continue
		}
		summaries = append(summaries, &UserSummary{
			ID:         user.ID,
			Username:   user.Username,
			Nickname:   user.Nickname,
			Similarity: r.Similarity,
			Rank:       r.Rank,
		})
	}
	return summaries, nil
}

func isMember(group *store.Group, userID int32) bool {
	for _, member := range group.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}
