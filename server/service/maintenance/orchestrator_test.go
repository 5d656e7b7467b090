package maintenance

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cohort/engine/aggregate"
	"github.com/hrygo/cohort/engine/encoder"
	"github.com/hrygo/cohort/engine/metrics"
	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/store"
)

// recordingDriver is a store.Driver stub capturing vector upserts.
type recordingDriver struct {
	mu         sync.Mutex
	upserts    []*store.EntityVector
	activities []*store.Activity
	groups     []*store.Group

	listActivitiesErr error
}

func (d *recordingDriver) recorded() []*store.EntityVector {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.EntityVector, len(d.upserts))
	copy(out, d.upserts)
	return out
}

func (d *recordingDriver) GetDB() *sql.DB                { return nil }
func (d *recordingDriver) Close() error                  { return nil }
func (d *recordingDriver) Migrate(context.Context) error { return nil }

func (d *recordingDriver) CreateUser(_ context.Context, create *store.User) (*store.User, error) {
	return create, nil
}
func (d *recordingDriver) ListUsers(context.Context, *store.FindUser) ([]*store.User, error) {
	return nil, nil
}

func (d *recordingDriver) CreateActivity(_ context.Context, create *store.Activity) (*store.Activity, error) {
	return create, nil
}
func (d *recordingDriver) ListActivities(_ context.Context, find *store.FindActivity) ([]*store.Activity, error) {
	if d.listActivitiesErr != nil {
		return nil, d.listActivitiesErr
	}
	list := []*store.Activity{}
	for _, activity := range d.activities {
		if find.UserID != nil && activity.UserID != *find.UserID {
			continue
		}
		list = append(list, activity)
	}
	return list, nil
}

func (d *recordingDriver) UpsertEntityVector(_ context.Context, upsert *store.EntityVector) (*store.EntityVector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upserts = append(d.upserts, upsert)
	return upsert, nil
}
func (d *recordingDriver) ListEntityVectors(context.Context, *store.FindEntityVector) ([]*store.EntityVector, error) {
	return nil, nil
}

func (d *recordingDriver) CreateGroup(_ context.Context, create *store.Group) (*store.Group, error) {
	return create, nil
}
func (d *recordingDriver) ListGroups(_ context.Context, find *store.FindGroup) ([]*store.Group, error) {
	list := []*store.Group{}
	for _, group := range d.groups {
		if find.ID != nil && group.ID != *find.ID {
			continue
		}
		list = append(list, group)
	}
	return list, nil
}
func (d *recordingDriver) UpdateGroup(context.Context, *store.UpdateGroup) (*store.Group, error) {
	return nil, nil
}
func (d *recordingDriver) RespondToGroupInvite(context.Context, *store.RespondToGroupInvite) (*store.GroupInviteResult, error) {
	return nil, nil
}

func (d *recordingDriver) CreateInbox(_ context.Context, create *store.Inbox) (*store.Inbox, error) {
	return create, nil
}
func (d *recordingDriver) ListInboxes(context.Context, *store.FindInbox) ([]*store.Inbox, error) {
	return nil, nil
}

// failingEncoder always errors, standing in for an unavailable provider.
type failingEncoder struct {
	dimension int
}

func (e *failingEncoder) Encode(context.Context, []aggregate.CategoryScore) ([]float32, error) {
	return nil, errors.New("provider unavailable")
}

func (e *failingEncoder) Dimension() int {
	return e.dimension
}

func newTestOrchestrator(t *testing.T, driver store.Driver, primary, fallback encoder.Encoder) *Orchestrator {
	t.Helper()
	s := store.New(driver, &profile.Profile{})
	t.Cleanup(func() { _ = s.Close() })

	return New(
		s,
		aggregate.New(s),
		primary,
		fallback,
		metrics.NewExporter(metrics.DefaultConfig()),
		5*time.Millisecond,
		2,
	)
}

func waitForUpserts(t *testing.T, driver *recordingDriver, want int) []*store.EntityVector {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if recorded := driver.recorded(); len(recorded) >= want {
			return recorded
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d vector upserts, got %d", want, len(driver.recorded()))
	return nil
}

func TestOrchestratorRecomputesUserVector(t *testing.T) {
	driver := &recordingDriver{activities: []*store.Activity{
		{UserID: 1, Kind: store.ActivityDocumentCreated, Subject: "algorithms"},
	}}
	o := newTestOrchestrator(t, driver, encoder.NewHashing(32), nil)
	defer o.Close()

	o.OnUserActivity(1)

	recorded := waitForUpserts(t, driver, 1)
	vector := recorded[0]
	assert.Equal(t, store.EntityUser, vector.Kind)
	assert.Equal(t, int32(1), vector.EntityID)
	assert.Equal(t, 32, vector.Dimension)
	require.Len(t, vector.Embedding, 32)

	nonZero := false
	for _, v := range vector.Embedding {
		if v != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestOrchestratorRecomputesGroupVector(t *testing.T) {
	subject := "physics"
	driver := &recordingDriver{groups: []*store.Group{
		{ID: 2, Subject: &subject, Tags: []string{"mechanics"}},
	}}
	o := newTestOrchestrator(t, driver, encoder.NewHashing(32), nil)
	defer o.Close()

	o.OnGroupChanged(2)

	recorded := waitForUpserts(t, driver, 1)
	assert.Equal(t, store.EntityGroup, recorded[0].Kind)
	assert.Equal(t, int32(2), recorded[0].EntityID)
}

func TestOrchestratorCoalescesRapidTriggers(t *testing.T) {
	driver := &recordingDriver{activities: []*store.Activity{
		{UserID: 1, Kind: store.ActivityTagUsed, Tag: "golang"},
	}}
	o := newTestOrchestrator(t, driver, encoder.NewHashing(16), nil)

	for i := 0; i < 20; i++ {
		o.OnUserActivity(1)
	}
	o.Close()

	recorded := driver.recorded()
	require.NotEmpty(t, recorded)
	// Coalescing bounds the work: 20 triggers never mean 20 recomputations.
	assert.Less(t, len(recorded), 20)
}

func TestOrchestratorFallsBackOnEncoderFailure(t *testing.T) {
	driver := &recordingDriver{activities: []*store.Activity{
		{UserID: 1, Kind: store.ActivityDocumentCreated, Subject: "databases"},
	}}
	o := newTestOrchestrator(t, driver, &failingEncoder{dimension: 16}, encoder.NewHashing(16))
	defer o.Close()

	o.OnUserActivity(1)

	recorded := waitForUpserts(t, driver, 1)
	require.Len(t, recorded[0].Embedding, 16)
}

func TestOrchestratorSwallowsStoreErrors(t *testing.T) {
	driver := &recordingDriver{listActivitiesErr: errors.New("database gone")}
	o := newTestOrchestrator(t, driver, encoder.NewHashing(16), nil)

	o.OnUserActivity(1)
	o.Close()

	assert.Empty(t, driver.recorded(), "a failed recomputation stores nothing and panics nowhere")
}

func TestOrchestratorIgnoresTriggersAfterClose(t *testing.T) {
	driver := &recordingDriver{activities: []*store.Activity{
		{UserID: 1, Kind: store.ActivityTagUsed, Tag: "golang"},
	}}
	o := newTestOrchestrator(t, driver, encoder.NewHashing(16), nil)
	o.Close()

	o.OnUserActivity(1)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, driver.recorded())
}
