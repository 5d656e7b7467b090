// Package maintenance keeps entity vectors eventually consistent with
// activity. Recomputation is asynchronous, debounced and best effort: the
// triggering business action never waits on it and never sees its failures.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hrygo/cohort/engine/aggregate"
	"github.com/hrygo/cohort/engine/encoder"
	"github.com/hrygo/cohort/engine/metrics"
	"github.com/hrygo/cohort/store"
)

type entityKey struct {
	kind store.EntityKind
	id   int32
}

type entityState struct {
	dirty bool
}

// Orchestrator subscribes to domain events and schedules vector
// recomputation. Rapid triggers for the same entity are coalesced: one
// worker per entity, re-running while the entity stays dirty.
type Orchestrator struct {
	store      *store.Store
	aggregator *aggregate.Aggregator
	encoder    encoder.Encoder
	fallback   encoder.Encoder
	exporter   *metrics.Exporter

	debounce time.Duration
	sem      *semaphore.Weighted

	mu      sync.Mutex
	pending map[entityKey]*entityState
	wg      sync.WaitGroup
	closed  bool
}

// New creates an Orchestrator. fallback may be nil; when set it is used after
// the primary encoder fails (e.g. embedding service timeout), so the stored
// vector still moves forward instead of the refresh being dropped.
func New(
	s *store.Store,
	aggregator *aggregate.Aggregator,
	enc encoder.Encoder,
	fallback encoder.Encoder,
	exporter *metrics.Exporter,
	debounce time.Duration,
	workers int,
) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		store:      s,
		aggregator: aggregator,
		encoder:    enc,
		fallback:   fallback,
		exporter:   exporter,
		debounce:   debounce,
		sem:        semaphore.NewWeighted(int64(workers)),
		pending:    map[entityKey]*entityState{},
	}
}

// OnUserActivity schedules a refresh of the user's vector.
func (o *Orchestrator) OnUserActivity(userID int32) {
	o.schedule(entityKey{kind: store.EntityUser, id: userID})
}

// OnGroupChanged schedules a refresh of the group's vector.
func (o *Orchestrator) OnGroupChanged(groupID int32) {
	o.schedule(entityKey{kind: store.EntityGroup, id: groupID})
}

func (o *Orchestrator) schedule(key entityKey) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if state, ok := o.pending[key]; ok {
		// A worker is already on it; mark it dirty so it runs once more.
		state.dirty = true
		o.mu.Unlock()
		return
	}
	o.pending[key] = &entityState{}
	o.exporter.SetPendingEntities(len(o.pending))
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(key)
}

func (o *Orchestrator) run(key entityKey) {
	defer o.wg.Done()
	ctx := context.Background()

	for {
		time.Sleep(o.debounce)

		if err := o.sem.Acquire(ctx, 1); err != nil {
			return
		}
		start := time.Now()
		err := o.recompute(ctx, key)
		o.sem.Release(1)

		o.exporter.ObserveRecompute(string(key.kind), time.Since(start).Seconds(), err)
		if err != nil {
			slog.Error("vector recomputation failed",
				"kind", key.kind,
				"entityID", key.id,
				"error", err)
		}

		o.mu.Lock()
		state := o.pending[key]
		if state != nil && state.dirty {
			state.dirty = false
			o.mu.Unlock()
			continue
		}
		delete(o.pending, key)
		o.exporter.SetPendingEntities(len(o.pending))
		o.mu.Unlock()
		return
	}
}

func (o *Orchestrator) recompute(ctx context.Context, key entityKey) error {
	var categories []aggregate.CategoryScore

	switch key.kind {
	case store.EntityUser:
		var err error
		categories, err = o.aggregator.UserCategories(ctx, key.id)
		if err != nil {
			return err
		}
	case store.EntityGroup:
		group, err := o.store.GetGroup(ctx, &store.FindGroup{ID: &key.id})
		if err != nil {
			return err
		}
		if group == nil {
			// Group vanished between trigger and refresh; nothing to do.
			return nil
		}
		categories = o.aggregator.GroupCategories(group)
	}

	vector, err := o.encoder.Encode(ctx, categories)
	if err != nil && o.fallback != nil {
		slog.Warn("primary encoder failed, falling back",
			"kind", key.kind,
			"entityID", key.id,
			"error", err)
		vector, err = o.fallback.Encode(ctx, categories)
	}
	if err != nil {
		return err
	}

	_, err = o.store.UpsertEntityVector(ctx, &store.EntityVector{
		Kind:      key.kind,
		EntityID:  key.id,
		Embedding: vector,
		Dimension: o.encoder.Dimension(),
	})
	return err
}

// Close stops accepting triggers and waits for in-flight recomputations.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()
}
