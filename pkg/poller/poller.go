// Package poller runs the background fetch loop that keeps the event bus
// supplied with cluster snapshots.
package poller

import (
	"sync"
	"time"

	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/metrics"
	"github.com/slurmview/slurmview/pkg/models"
	"github.com/slurmview/slurmview/pkg/slurm"
)

// DefaultInterval between fetch cycles.
const DefaultInterval = 5 * time.Second

// Source abstracts the session for the poller: liveness plus state. It is
// satisfied by *cluster.Session and by fakes in tests.
type Source interface {
	IsAlive() bool
	State() models.ConnectionState
}

// Fetcher is the slice of the slurm client the poller needs.
type Fetcher interface {
	FetchNodes() ([]models.NodeRecord, error)
	FetchQueue() ([]models.JobRecord, error)
}

// Poller owns one background goroutine per connection. While the session
// reports connected it fetches the node and queue listings, parses them and
// publishes a single DataReady event per cycle; any failure becomes an
// ErrorOccurred event and the loop keeps going. At most one cycle is ever
// in flight, even when the interval is shorter than a cycle.
type Poller struct {
	session  Source
	client   Fetcher
	bus      *events.Bus
	log      *logging.Logger
	metrics  *metrics.Collector
	interval time.Duration

	cycleMu sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	startMu sync.Mutex
	running bool
}

// New creates a poller. The metrics collector may be nil.
func New(session Source, client Fetcher, bus *events.Bus, log *logging.Logger, m *metrics.Collector, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Poller{
		session:  session,
		client:   client,
		bus:      bus,
		log:      log.WithComponent("poller"),
		metrics:  m,
		interval: interval,
	}
}

// Start launches the loop. Calling Start on a running poller is a no-op.
func (p *Poller) Start() {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(p.stopCh, p.doneCh)
}

// Stop requests the loop to exit and waits for it. An in-flight remote
// command finishes naturally; the stop flag is honored at the next loop
// boundary.
func (p *Poller) Stop() {
	p.startMu.Lock()
	if !p.running {
		p.startMu.Unlock()
		return
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.startMu.Unlock()

	close(stopCh)
	<-doneCh
}

func (p *Poller) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First snapshot immediately rather than one interval in.
	p.RefreshNow()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			select {
			case <-stopCh:
				return
			default:
			}
			p.RefreshNow()
		}
	}
}

// RefreshNow runs one fetch cycle synchronously. When a cycle is already in
// flight the call returns immediately without starting a second one.
func (p *Poller) RefreshNow() {
	if !p.cycleMu.TryLock() {
		return
	}
	defer p.cycleMu.Unlock()

	if p.session.State() != models.StateConnected || !p.session.IsAlive() {
		if p.metrics != nil {
			p.metrics.Connected.Set(0)
		}
		return
	}
	if p.metrics != nil {
		p.metrics.Connected.Set(1)
	}

	start := time.Now()
	nodes, err := p.client.FetchNodes()
	if err != nil {
		p.fail(err)
		return
	}
	jobs, err := p.client.FetchQueue()
	if err != nil {
		p.fail(err)
		return
	}

	if p.metrics != nil {
		p.metrics.CyclesTotal.Inc()
		p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		p.metrics.NodesTotal.Set(float64(len(nodes)))
		p.metrics.QueueLength.Set(float64(len(jobs)))
	}

	p.bus.Publish(events.DataReady, map[string]interface{}{
		"nodes": nodes,
		"jobs":  jobs,
	}, "poller")
}

func (p *Poller) fail(err error) {
	if p.metrics != nil {
		p.metrics.CycleErrors.Inc()
	}
	// A lost session already published its own error and state change;
	// the cycle error is still reported so consumers see why no DataReady
	// arrived.
	p.log.Warn("poll cycle failed", map[string]interface{}{"error": err.Error()})
	p.bus.Publish(events.ErrorOccurred, map[string]interface{}{
		"error": err.Error(),
	}, "poller")
}

var _ Fetcher = (*slurm.Client)(nil)
