package recommend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/store"
	"github.com/hrygo/cohort/store/db/sqlite"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	p := &profile.Profile{
		Mode:            "dev",
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "cohort_test.db"),
		VectorDimension: 4,
		RecommendTopK:   10,
		MinSimilarity:   0.3,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	return NewService(s, p), s
}

func upsertVector(t *testing.T, s *store.Store, kind store.EntityKind, entityID int32, embedding []float32) {
	t.Helper()
	_, err := s.UpsertEntityVector(context.Background(), &store.EntityVector{
		Kind:      kind,
		EntityID:  entityID,
		Embedding: embedding,
		Dimension: len(embedding),
	})
	require.NoError(t, err)
}

func createActiveGroup(t *testing.T, s *store.Store, uid string, memberIDs []int32) *store.Group {
	t.Helper()
	members := make([]*store.GroupMember, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, &store.GroupMember{UserID: id, InviteStatus: store.InviteJoined})
	}
	subject := "algorithms"
	group, err := s.CreateGroup(context.Background(), &store.Group{
		UID:     uid,
		Name:    "Study circle: algorithms",
		Status:  store.GroupActive,
		Subject: &subject,
		Tags:    []string{"golang"},
		Members: members,
	})
	require.NoError(t, err)
	return group
}

func TestGroupsForUserRanksActiveGroups(t *testing.T) {
	service, s := newTestService(t)
	ctx := context.Background()

	upsertVector(t, s, store.EntityUser, 2, []float32{1, 0, 0, 0})

	near := createActiveGroup(t, s, "grp-near", []int32{1})
	far := createActiveGroup(t, s, "grp-far", []int32{3})
	upsertVector(t, s, store.EntityGroup, near.ID, []float32{0.9, 0.1, 0, 0})
	upsertVector(t, s, store.EntityGroup, far.ID, []float32{0, 0, 1, 0})

	summaries, err := service.GroupsForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 1, "dissimilar group is filtered by min similarity")
	assert.Equal(t, "grp-near", summaries[0].UID)
	assert.Equal(t, 1, summaries[0].Rank)
	assert.Greater(t, summaries[0].Similarity, float32(0.3))
}

func TestGroupsForUserExcludesOwnGroups(t *testing.T) {
	service, s := newTestService(t)

	upsertVector(t, s, store.EntityUser, 1, []float32{1, 0, 0, 0})
	group := createActiveGroup(t, s, "grp-own", []int32{1})
	upsertVector(t, s, store.EntityGroup, group.ID, []float32{1, 0, 0, 0})

	summaries, err := service.GroupsForUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, summaries, "a member's own group is never recommended back")
}

func TestGroupsForUserWithoutVector(t *testing.T) {
	service, _ := newTestService(t)

	summaries, err := service.GroupsForUser(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestUsersForGroupExcludesMembers(t *testing.T) {
	service, s := newTestService(t)
	ctx := context.Background()

	for _, u := range []struct {
		id       int32
		username string
	}{{1, "ada"}, {2, "grace"}} {
		_, err := s.CreateUser(ctx, &store.User{ID: u.id, Username: u.username, Nickname: u.username})
		require.NoError(t, err)
	}

	group := createActiveGroup(t, s, "grp-users", []int32{1})
	upsertVector(t, s, store.EntityGroup, group.ID, []float32{1, 0, 0, 0})
	upsertVector(t, s, store.EntityUser, 1, []float32{1, 0, 0, 0})
	upsertVector(t, s, store.EntityUser, 2, []float32{0.95, 0.05, 0, 0})

	summaries, err := service.UsersForGroup(ctx, "grp-users")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "grace", summaries[0].Username)
	assert.Equal(t, 1, summaries[0].Rank)
}

func TestUsersForGroupNotFound(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.UsersForGroup(context.Background(), "missing-uid")
	assert.True(t, errors.Is(err, store.ErrGroupNotFound))
}
