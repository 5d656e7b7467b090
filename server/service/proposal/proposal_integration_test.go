package proposal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cohort/engine/aggregate"
	"github.com/hrygo/cohort/engine/metrics"
	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/plugin/notifier"
	"github.com/hrygo/cohort/store"
	"github.com/hrygo/cohort/store/db/sqlite"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	p := &profile.Profile{
		Mode:                 "dev",
		Driver:               "sqlite",
		DSN:                  filepath.Join(t.TempDir(), "cohort_test.db"),
		VectorDimension:      4,
		ClusterThreshold:     0.8,
		MinClusterSize:       3,
		MinMembersToActivate: 2,
		ProposalTTL:          time.Hour,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })

	service := NewService(s, aggregate.New(s), notifier.New(""), metrics.NewExporter(metrics.DefaultConfig()), p)
	return service, s
}

func createProposal(t *testing.T, s *store.Store, uid string, userIDs []int32, expiresTs *int64) *store.Group {
	t.Helper()
	members := make([]*store.GroupMember, 0, len(userIDs))
	for _, id := range userIDs {
		members = append(members, &store.GroupMember{UserID: id})
	}
	subject := "databases"
	group, err := s.CreateGroup(context.Background(), &store.Group{
		UID:       uid,
		Name:      "Study circle: databases",
		Status:    store.GroupProposed,
		Subject:   &subject,
		Tags:      []string{"sql"},
		ExpiresTs: expiresTs,
		Members:   members,
	})
	require.NoError(t, err)
	return group
}

func waitForInboxes(t *testing.T, s *store.Store, kind store.InboxKind, want int) []*store.Inbox {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		inboxes, err := s.ListInboxes(context.Background(), &store.FindInbox{Kind: &kind})
		require.NoError(t, err)
		if len(inboxes) >= want {
			return inboxes
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d %s inbox rows", want, kind)
	return nil
}

func TestRespondActivatesAtQuorum(t *testing.T) {
	service, s := newTestService(t)
	ctx := context.Background()
	createProposal(t, s, "grp-quorum", []int32{1, 2, 3}, nil)

	result, err := service.Respond(ctx, "grp-quorum", 1, true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.IsActivated)
	assert.Equal(t, 1, result.AcceptedCount)
	assert.Equal(t, 1, result.RemainingToActivate)

	result, err = service.Respond(ctx, "grp-quorum", 2, true)
	require.NoError(t, err)
	assert.True(t, result.IsActivated)
	assert.Equal(t, 0, result.RemainingToActivate)

	// One activation notification per joined member, written asynchronously.
	inboxes := waitForInboxes(t, s, store.InboxGroupActivated, 2)
	receivers := map[int32]bool{}
	for _, inbox := range inboxes {
		receivers[inbox.ReceiverID] = true
	}
	assert.True(t, receivers[1])
	assert.True(t, receivers[2])
}

func TestRespondUnknownGroup(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Respond(context.Background(), "nope", 1, true)
	assert.True(t, errors.Is(err, store.ErrGroupNotFound))
}

func TestRespondDecline(t *testing.T) {
	service, s := newTestService(t)
	createProposal(t, s, "grp-decline", []int32{1, 2, 3}, nil)

	result, err := service.Respond(context.Background(), "grp-decline", 1, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.IsActivated)
	assert.Equal(t, 0, result.AcceptedCount)
}

func TestPendingProposalsFiltersExpired(t *testing.T) {
	service, s := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).Unix()
	future := time.Now().Add(time.Hour).Unix()
	createProposal(t, s, "grp-expired", []int32{1}, &past)
	createProposal(t, s, "grp-live", []int32{1}, &future)

	pending, err := service.PendingProposalsForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "grp-live", pending[0].UID)
}

func TestCreateProposalsFromClusters(t *testing.T) {
	service, s := newTestService(t)
	ctx := context.Background()

	// Three near-identical users and one outlier.
	vectors := map[int32][]float32{
		1: {1, 0, 0, 0},
		2: {0.98, 0.02, 0, 0},
		3: {0.97, 0.03, 0, 0},
		9: {0, 0, 0, 1},
	}
	for entityID, embedding := range vectors {
		_, err := s.UpsertEntityVector(ctx, &store.EntityVector{
			Kind:      store.EntityUser,
			EntityID:  entityID,
			Embedding: embedding,
			Dimension: 4,
		})
		require.NoError(t, err)
	}
	for _, userID := range []int32{1, 2, 3} {
		_, err := s.CreateActivity(ctx, &store.Activity{
			UserID:  userID,
			Kind:    store.ActivityDocumentCreated,
			Subject: "databases",
			Tag:     "sql",
		})
		require.NoError(t, err)
	}

	created, err := service.CreateProposalsFromClusters(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)

	group := created[0]
	assert.Equal(t, store.GroupProposed, group.Status)
	require.NotNil(t, group.Subject)
	assert.Equal(t, "databases", *group.Subject)
	assert.Contains(t, group.Tags, "sql")
	assert.NotNil(t, group.ExpiresTs)
	require.Len(t, group.Members, 3)
	for _, member := range group.Members {
		assert.Equal(t, store.InvitePending, member.InviteStatus)
	}

	invited := waitForInboxes(t, s, store.InboxGroupInvited, 3)
	assert.Len(t, invited, 3)

	// A second sweep sees the pending invites and creates nothing new.
	again, err := service.CreateProposalsFromClusters(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}
