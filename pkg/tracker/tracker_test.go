package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/models"
	"github.com/slurmview/slurmview/pkg/store"
)

type memStore struct {
	recorded []store.Transition
}

func (m *memStore) RecordTransition(t store.Transition) error {
	m.recorded = append(m.recorded, t)
	return nil
}

func (m *memStore) ListTransitions(jobID string, limit int) ([]store.Transition, error) {
	return m.recorded, nil
}

func (m *memStore) Close() error { return nil }

func publishSnapshot(bus *events.Bus, jobs []models.JobRecord, nodes []models.NodeRecord) {
	bus.Publish(events.DataReady, map[string]interface{}{
		"jobs":  jobs,
		"nodes": nodes,
	}, "poller")
}

func TestFirstSnapshotProducesNoTransitions(t *testing.T) {
	bus := events.NewBus(nil)
	var changed []events.Event
	bus.Subscribe(events.JobStatusChanged, "test", func(ev events.Event) {
		changed = append(changed, ev)
	})

	hist := &memStore{}
	trk := New(bus, hist, nil, nil)
	trk.Start()
	defer trk.Stop()

	publishSnapshot(bus, []models.JobRecord{
		{ID: "42", Status: models.JobStatusPending},
	}, nil)

	assert.Empty(t, changed, "nothing to compare on the first snapshot")
	assert.Empty(t, hist.recorded)
	assert.Len(t, trk.LatestJobs(), 1)
}

func TestStatusChangeIsRecordedAndRepublished(t *testing.T) {
	bus := events.NewBus(nil)
	var changed []events.Event
	bus.Subscribe(events.JobStatusChanged, "test", func(ev events.Event) {
		changed = append(changed, ev)
	})

	hist := &memStore{}
	trk := New(bus, hist, nil, nil)
	trk.Start()
	defer trk.Stop()

	publishSnapshot(bus, []models.JobRecord{
		{ID: "42", Name: "train", User: "alice", Status: models.JobStatusPending},
	}, nil)
	publishSnapshot(bus, []models.JobRecord{
		{ID: "42", Name: "train", User: "alice", Status: models.JobStatusRunning},
	}, nil)

	require.Len(t, changed, 1)
	ev := changed[0]
	assert.Equal(t, "42", ev.Payload["job_id"])
	assert.Equal(t, models.JobStatusPending, ev.Payload["old_status"])
	assert.Equal(t, models.JobStatusRunning, ev.Payload["new_status"])
	assert.Equal(t, "tracker", ev.Source)

	require.Len(t, hist.recorded, 1)
	rec := hist.recorded[0]
	assert.Equal(t, "42", rec.JobID)
	assert.Equal(t, "train", rec.JobName)
	assert.Equal(t, models.JobStatusPending, rec.OldStatus)
	assert.Equal(t, models.JobStatusRunning, rec.NewStatus)
}

func TestNonStatusFieldChangeIsNotATransition(t *testing.T) {
	bus := events.NewBus(nil)
	var changed []events.Event
	bus.Subscribe(events.JobStatusChanged, "test", func(ev events.Event) {
		changed = append(changed, ev)
	})

	hist := &memStore{}
	trk := New(bus, hist, nil, nil)
	trk.Start()
	defer trk.Stop()

	publishSnapshot(bus, []models.JobRecord{
		{ID: "42", Status: models.JobStatusRunning, NodeList: "gpu01"},
	}, nil)
	publishSnapshot(bus, []models.JobRecord{
		{ID: "42", Status: models.JobStatusRunning, NodeList: "gpu02"},
	}, nil)

	assert.Empty(t, changed, "node list churn is not a status change")
	assert.Empty(t, hist.recorded)
}

func TestIdenticalSnapshotsAreQuiet(t *testing.T) {
	bus := events.NewBus(nil)
	var changed []events.Event
	bus.Subscribe(events.JobStatusChanged, "test", func(ev events.Event) {
		changed = append(changed, ev)
	})

	trk := New(bus, nil, nil, nil)
	trk.Start()
	defer trk.Stop()

	jobs := []models.JobRecord{{ID: "1", Status: models.JobStatusRunning}}
	publishSnapshot(bus, jobs, nil)
	publishSnapshot(bus, jobs, nil)
	publishSnapshot(bus, jobs, nil)

	assert.Empty(t, changed)
}

func TestLatestSnapshotAccessors(t *testing.T) {
	bus := events.NewBus(nil)
	trk := New(bus, nil, nil, nil)
	trk.Start()
	defer trk.Stop()

	assert.True(t, trk.UpdatedAt().IsZero())

	publishSnapshot(bus,
		[]models.JobRecord{{ID: "1"}},
		[]models.NodeRecord{{Name: "n1"}, {Name: "n2"}},
	)

	assert.Len(t, trk.LatestJobs(), 1)
	assert.Len(t, trk.LatestNodes(), 2)
	assert.False(t, trk.UpdatedAt().IsZero())
}

func TestStopUnsubscribes(t *testing.T) {
	bus := events.NewBus(nil)
	trk := New(bus, nil, nil, nil)
	trk.Start()
	trk.Stop()

	publishSnapshot(bus, []models.JobRecord{{ID: "1"}}, nil)
	assert.Empty(t, trk.LatestJobs(), "stopped tracker must not consume snapshots")
}
