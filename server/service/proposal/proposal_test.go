package proposal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/cohort/store"
)

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name   string
		accept bool
		result *store.GroupInviteResult
		want   respondOutcome
	}{
		{
			name:   "decline",
			accept: false,
			result: &store.GroupInviteResult{},
			want:   outcomeDeclined,
		},
		{
			name:   "accept below quorum",
			accept: true,
			result: &store.GroupInviteResult{AcceptedCount: 2},
			want:   outcomeAcceptedWaiting,
		},
		{
			name:   "accept triggers activation",
			accept: true,
			result: &store.GroupInviteResult{Activated: true, AcceptedCount: 3},
			want:   outcomeActivated,
		},
		{
			name:   "accept after lost activation race",
			accept: true,
			result: &store.GroupInviteResult{AlreadyActive: true, AcceptedCount: 4},
			want:   outcomeAlreadyActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyOutcome(tt.accept, tt.result))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "declined", outcomeDeclined.String())
	assert.Equal(t, "accepted", outcomeAcceptedWaiting.String())
	assert.Equal(t, "activated", outcomeActivated.String())
	assert.Equal(t, "already_active", outcomeAlreadyActive.String())
}

func TestOutcomeMessage(t *testing.T) {
	msg := outcomeMessage(outcomeAcceptedWaiting, "Study circle: algorithms", 2)
	assert.Contains(t, msg, "Study circle: algorithms")
	assert.Contains(t, msg, "2 more acceptance(s)")

	msg = outcomeMessage(outcomeActivated, "Study circle: algorithms", 0)
	assert.Contains(t, msg, "now active")

	msg = outcomeMessage(outcomeAlreadyActive, "Study circle: algorithms", 0)
	assert.Contains(t, msg, "already activated")

	msg = outcomeMessage(outcomeDeclined, "Study circle: algorithms", 0)
	assert.Contains(t, msg, "declined")
}

func TestTopNames(t *testing.T) {
	scores := map[string]float64{
		"golang":   4.5,
		"graphs":   4.5,
		"calculus": 1.0,
		"testing":  9.0,
	}

	names := topNames(scores, 3)
	// Highest score first, ties broken alphabetically.
	assert.Equal(t, []string{"testing", "golang", "graphs"}, names)
}

func TestTopNamesLimitExceedsSize(t *testing.T) {
	names := topNames(map[string]float64{"a": 1}, 5)
	assert.Equal(t, []string{"a"}, names)
}

func TestTopNameEmpty(t *testing.T) {
	assert.Equal(t, "", topName(nil))
}
