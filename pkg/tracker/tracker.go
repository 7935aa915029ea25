// Package tracker consumes DataReady snapshots, detects per-job changes
// with the diff engine and republishes them as JobStatusChanged events. It
// also retains the latest snapshot for anything that wants current state
// without subscribing (the HTTP status surface does).
package tracker

import (
	"sync"
	"time"

	"github.com/slurmview/slurmview/pkg/diff"
	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/metrics"
	"github.com/slurmview/slurmview/pkg/models"
	"github.com/slurmview/slurmview/pkg/store"
)

const subscriberID = "tracker"

// Tracker is an event bus subscriber owning its retained snapshot; records
// arriving in events are never mutated, only replaced wholesale.
type Tracker struct {
	bus     *events.Bus
	log     *logging.Logger
	metrics *metrics.Collector
	history store.Store // may be nil: tracking without persistence

	mu          sync.Mutex
	subIDs      []string
	prevJobs    map[string]models.JobRecord
	latestJobs  []models.JobRecord
	latestNodes []models.NodeRecord
	updatedAt   time.Time
}

// New creates a tracker; call Start to subscribe it. history and m may be
// nil.
func New(bus *events.Bus, history store.Store, m *metrics.Collector, log *logging.Logger) *Tracker {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Tracker{
		bus:     bus,
		log:     log.WithComponent("tracker"),
		metrics: m,
		history: history,
	}
}

// Start subscribes to DataReady. Idempotent only in the sense that Stop
// undoes every Start; callers pair them.
func (t *Tracker) Start() {
	id := t.bus.Subscribe(events.DataReady, subscriberID, t.onDataReady)
	t.mu.Lock()
	t.subIDs = append(t.subIDs, id)
	t.mu.Unlock()
}

// Stop removes the tracker's subscriptions.
func (t *Tracker) Stop() {
	t.bus.UnsubscribeAll(subscriberID)
	t.mu.Lock()
	t.subIDs = nil
	t.mu.Unlock()
}

func (t *Tracker) onDataReady(ev events.Event) {
	jobs, _ := ev.Payload["jobs"].([]models.JobRecord)
	nodes, _ := ev.Payload["nodes"].([]models.NodeRecord)

	current := diff.Snapshot(jobs)

	t.mu.Lock()
	prev := t.prevJobs
	t.prevJobs = current
	t.latestJobs = jobs
	t.latestNodes = nodes
	t.updatedAt = ev.Timestamp
	t.mu.Unlock()

	if prev == nil {
		// First snapshot: nothing to compare against, everything would
		// read as added.
		return
	}

	result := diff.Diff(prev, current)
	if result.Empty() {
		return
	}
	t.log.Debug("queue changed", map[string]interface{}{
		"added": len(result.Added), "removed": len(result.Removed), "updated": len(result.Updated),
	})

	for _, ch := range result.Updated {
		if ch.Old.Status == ch.New.Status {
			continue
		}
		t.recordTransition(ch)
	}
}

func (t *Tracker) recordTransition(ch diff.Change) {
	if t.metrics != nil {
		t.metrics.Transitions.WithLabelValues(
			string(ch.Old.Status), string(ch.New.Status),
		).Inc()
	}
	if t.history != nil {
		err := t.history.RecordTransition(store.Transition{
			JobID:     ch.ID,
			JobName:   ch.New.Name,
			User:      ch.New.User,
			OldStatus: ch.Old.Status,
			NewStatus: ch.New.Status,
		})
		if err != nil {
			t.log.Error("failed to persist transition", map[string]interface{}{
				"job_id": ch.ID, "error": err.Error(),
			})
		}
	}
	t.bus.Publish(events.JobStatusChanged, map[string]interface{}{
		"job_id":     ch.ID,
		"job_name":   ch.New.Name,
		"user":       ch.New.User,
		"old_status": ch.Old.Status,
		"new_status": ch.New.Status,
	}, "tracker")
}

// LatestJobs returns the most recent queue snapshot.
func (t *Tracker) LatestJobs() []models.JobRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latestJobs
}

// LatestNodes returns the most recent node snapshot.
func (t *Tracker) LatestNodes() []models.NodeRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latestNodes
}

// UpdatedAt returns the publish time of the retained snapshot, zero before
// the first DataReady.
func (t *Tracker) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}
