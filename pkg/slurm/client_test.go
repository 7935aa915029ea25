package slurm

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slurmview/slurmview/pkg/cluster"
	"github.com/slurmview/slurmview/pkg/events"
)

// fakeTransport scripts command outputs by prefix match and records what
// was run and uploaded.
type fakeTransport struct {
	outputs map[string][2]string // command prefix -> stdout, stderr
	err     error
	ran     []string
	uploads map[string]string
}

func (f *fakeTransport) Run(command string) (string, string, error) {
	f.ran = append(f.ran, command)
	if f.err != nil {
		return "", "", f.err
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(command, prefix) {
			return out[0], out[1], nil
		}
	}
	return "", "", nil
}

func (f *fakeTransport) Upload(remotePath, content string) error {
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[remotePath] = content
	return nil
}

func TestFetchPartitionsStripsDefaultMarkerAndCaches(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{
		"sinfo -h -o '%P'": {"batch*\ngpu\nbatch*\n", ""},
	}}
	c := NewClient(ft, nil, nil)

	parts, err := c.FetchPartitions()
	require.NoError(t, err)
	assert.Equal(t, []string{"batch", "gpu"}, parts)

	// Second call must come from the cache.
	_, err = c.FetchPartitions()
	require.NoError(t, err)
	assert.Len(t, ft.ran, 1)

	c.InvalidateCaches()
	_, err = c.FetchPartitions()
	require.NoError(t, err)
	assert.Len(t, ft.ran, 2)
}

func TestFetchConstraintsSplitsCommaLists(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{
		"sinfo -h -o '%f'": {"intel,avx512\namd\nintel\n(null)\n", ""},
	}}
	c := NewClient(ft, nil, nil)

	got, err := c.FetchConstraints()
	require.NoError(t, err)
	assert.Equal(t, []string{"(null)", "amd", "avx512", "intel"}, got)

	// Cached: the second call must not go back to the cluster.
	again, err := c.FetchConstraints()
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Len(t, ft.ran, 1)

	c.InvalidateCaches()
	_, err = c.FetchConstraints()
	require.NoError(t, err)
	assert.Len(t, ft.ran, 2)
}

func TestFetchLinesStderrIsFailure(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{
		"sacctmgr show associations": {"", "sacctmgr: error: slurmdbd down"},
	}}
	c := NewClient(ft, nil, nil)

	_, err := c.FetchAccounts()
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrCommandFailed)
}

func TestReadMaintenances(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{
		"scontrol show reservation": {"No reservations in the system\n", ""},
	}}
	c := NewClient(ft, nil, nil)

	out, err := c.ReadMaintenances()
	require.NoError(t, err)
	assert.Empty(t, out)

	ft.outputs["scontrol show reservation"] = [2]string{"ReservationName=maint_aug StartTime=2026-08-30T00:00:00\n", ""}
	out, err = c.ReadMaintenances()
	require.NoError(t, err)
	assert.Contains(t, out, "ReservationName=maint_aug")
}

func TestSubmit(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{
		"sbatch": {"Submitted batch job 12345\n", ""},
	}}
	bus := events.NewBus(nil)
	var published []events.Event
	bus.Subscribe(events.JobSubmitted, "test", func(ev events.Event) {
		published = append(published, ev)
	})
	c := NewClient(ft, bus, nil)

	jobID, err := c.Submit("#!/bin/bash\nsleep 60\n", "job.sbatch")
	require.NoError(t, err)
	assert.Equal(t, "12345", jobID)
	assert.Equal(t, "#!/bin/bash\nsleep 60\n", ft.uploads["/tmp/job.sbatch"])

	require.Len(t, published, 1)
	assert.Equal(t, "12345", published[0].Payload["job_id"])
}

func TestSubmitFailure(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{
		"sbatch": {"", "sbatch: error: invalid partition specified"},
	}}
	c := NewClient(ft, nil, nil)

	_, err := c.Submit("#!/bin/bash\n", "job.sbatch")
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrCommandFailed)
	assert.Contains(t, err.Error(), "invalid partition")
}

func TestCancel(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{}}
	bus := events.NewBus(nil)
	var published []events.Event
	bus.Subscribe(events.JobCancelled, "test", func(ev events.Event) {
		published = append(published, ev)
	})
	c := NewClient(ft, bus, nil)

	require.NoError(t, c.Cancel("42"))
	assert.Equal(t, []string{"scancel 42"}, ft.ran)
	require.Len(t, published, 1)
	assert.Equal(t, "42", published[0].Payload["job_id"])
}

func TestCancelStderrIsFailure(t *testing.T) {
	ft := &fakeTransport{outputs: map[string][2]string{
		"scancel": {"", "scancel: error: Invalid job id 999"},
	}}
	c := NewClient(ft, nil, nil)

	err := c.Cancel("999")
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrCommandFailed)
}

func TestFetchNodesPropagatesTransportError(t *testing.T) {
	wantErr := errors.New("session lost")
	c := NewClient(&fakeTransport{err: wantErr}, nil, nil)

	_, err := c.FetchNodes()
	assert.ErrorIs(t, err, wantErr)
}
