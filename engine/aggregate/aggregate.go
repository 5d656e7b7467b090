// Package aggregate folds raw activity rows into weighted category scores.
// The scores are transient; the activity table stays the source of truth.
package aggregate

import (
	"context"
	"sort"
	"strings"

	"github.com/hrygo/cohort/store"
)

// CategoryScore is one weighted behavior category, e.g. a subject, a content
// type, or a tag the user has touched.
type CategoryScore struct {
	Name  string
	Score float64
}

// Activity kind weights. Creating content signals interest more strongly
// than reviewing it, which in turn beats merely joining a conversation.
const (
	weightDocumentCreated    = 3.0
	weightDocumentReviewed   = 1.5
	weightConversationJoined = 1.0
	weightTagUsed            = 0.5
)

// Category names are prefixed per facet so that a subject and a tag with the
// same text never collapse into one bucket.
const (
	prefixSubject     = "subject:"
	prefixContentType = "type:"
	prefixTag         = "tag:"
)

// Aggregator reads activity rows and produces weighted category scores.
type Aggregator struct {
	store *store.Store
}

func New(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// UserCategories computes the weighted category scores for a user from their
// full activity history. An inactive user yields an empty list, not an error.
func (a *Aggregator) UserCategories(ctx context.Context, userID int32) ([]CategoryScore, error) {
	activities, err := a.store.ListActivities(ctx, &store.FindActivity{UserID: &userID})
	if err != nil {
		return nil, err
	}

	scores := map[string]float64{}
	for _, activity := range activities {
		weight := kindWeight(activity.Kind)
		if activity.Subject != "" {
			scores[prefixSubject+activity.Subject] += weight
		}
		if activity.ContentType != "" {
			scores[prefixContentType+activity.ContentType] += weight
		}
		if activity.Tag != "" {
			scores[prefixTag+activity.Tag] += weightTagUsed
		}
	}

	return sortedScores(scores), nil
}

// GroupCategories derives category scores from a group's subject and tags.
// Group-shaped input carries implicit equal weight per identifier.
func (a *Aggregator) GroupCategories(group *store.Group) []CategoryScore {
	scores := map[string]float64{}
	if group.Subject != nil && *group.Subject != "" {
		scores[prefixSubject+*group.Subject] = 1.0
	}
	for _, tag := range group.Tags {
		if tag != "" {
			scores[prefixTag+tag] = 1.0
		}
	}
	return sortedScores(scores)
}

func kindWeight(kind store.ActivityKind) float64 {
	switch kind {
	case store.ActivityDocumentCreated:
		return weightDocumentCreated
	case store.ActivityDocumentReviewed:
		return weightDocumentReviewed
	case store.ActivityConversationJoined:
		return weightConversationJoined
	case store.ActivityTagUsed:
		return weightTagUsed
	default:
		return 0
	}
}

// SubjectName reports whether the category is a subject score and returns
// the bare subject name.
func SubjectName(category string) (string, bool) {
	if strings.HasPrefix(category, prefixSubject) {
		return strings.TrimPrefix(category, prefixSubject), true
	}
	return "", false
}

// TagName reports whether the category is a tag score and returns the bare
// tag name.
func TagName(category string) (string, bool) {
	if strings.HasPrefix(category, prefixTag) {
		return strings.TrimPrefix(category, prefixTag), true
	}
	return "", false
}

// sortedScores returns the map as a slice ordered by name, so downstream
// encoding sees a stable input order.
func sortedScores(scores map[string]float64) []CategoryScore {
	list := make([]CategoryScore, 0, len(scores))
	for name, score := range scores {
		list = append(list, CategoryScore{Name: name, Score: score})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
