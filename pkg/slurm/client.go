package slurm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/slurmview/slurmview/pkg/cluster"
	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/models"
)

// Remote command lines the parsers depend on. queueCommand's escaped
// semicolons make squeue separate columns with a literal ";".
const (
	nodesCommand = "scontrol show nodes"
	queueCommand = "squeue -O jobarrayid:\\;,Reason:\\;,NodeList:\\;,Username:\\;,tres-per-job:\\;," +
		"tres-per-task:\\;,tres-per-node:\\;,Name:\\;,Partition:\\;,StateCompact:\\;," +
		"Timelimit:\\;,TimeUsed:\\;,NumNodes:\\;,NumTasks:\\;,Reason:\\;,MinMemory:\\;," +
		"MinCpus:\\;,Account:\\;,PriorityLong:\\;,jobid:\\;,tres:\\;,nice:"
	partitionsCommand   = "sinfo -h -o '%P'"
	constraintsCommand  = "sinfo -h -o '%f'"
	accountsCommand     = "sacctmgr show associations format=Account -n -P"
	qosCommand          = "sacctmgr show qos format=Name -n -P"
	gresCommand         = "scontrol show gres"
	reservationsCommand = "scontrol show reservation 2>/dev/null"

	submittedPhrase = "Submitted batch job"
)

// Transport is what the client needs from the session layer: command
// execution plus file upload for submission scripts.
type Transport interface {
	cluster.Runner
	Upload(remotePath, content string) error
}

// ClusterInfo holds one-time facts fetched after connecting.
type ClusterInfo struct {
	User      string `json:"user"`
	Hostname  string `json:"hostname"`
	NodeCount string `json:"node_count"`
	Version   string `json:"version"`
}

// Client issues scheduler commands over a Transport and parses their
// output. Enumeration results (partitions, accounts, QoS, constraints,
// GRES) are deduplicated, sorted and cached until InvalidateCaches.
type Client struct {
	t   Transport
	bus *events.Bus
	log *logging.Logger

	mu          sync.Mutex
	partitions  []string
	accounts    []string
	qos         []string
	constraints []string
	gres        []string
}

// NewClient creates a scheduler client. The bus may be nil when no one
// cares about submit/cancel events.
func NewClient(t Transport, bus *events.Bus, log *logging.Logger) *Client {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Client{t: t, bus: bus, log: log.WithComponent("slurm")}
}

// FetchNodes runs the node listing command and parses it.
func (c *Client) FetchNodes() ([]models.NodeRecord, error) {
	out, _, err := c.t.Run(nodesCommand)
	if err != nil {
		return nil, err
	}
	return ParseNodes(out), nil
}

// FetchQueue runs the work-queue listing command and parses it.
func (c *Client) FetchQueue() ([]models.JobRecord, error) {
	out, _, err := c.t.Run(queueCommand)
	if err != nil {
		return nil, err
	}
	return ParseQueue(out, c.log), nil
}

// FetchClusterInfo gathers basic facts about the cluster head node.
func (c *Client) FetchClusterInfo() (ClusterInfo, error) {
	var info ClusterInfo
	for _, probe := range []struct {
		cmd  string
		dest *string
	}{
		{"whoami", &info.User},
		{"hostname", &info.Hostname},
		{"sinfo -h -o '%D' | awk '{s+=$1} END {print s}'", &info.NodeCount},
		{"scontrol --version", &info.Version},
	} {
		out, _, err := c.t.Run(probe.cmd)
		if err != nil {
			return info, err
		}
		*probe.dest = strings.TrimSpace(out)
	}
	return info, nil
}

// fetchLines runs a one-value-per-line enumeration command and returns the
// deduplicated, sorted values.
func (c *Client) fetchLines(cmd string) ([]string, error) {
	out, stderr, err := c.t.Run(cmd)
	if err != nil {
		return nil, err
	}
	if stderr != "" {
		return nil, fmt.Errorf("%w: %s", cluster.ErrCommandFailed, stderr)
	}
	return dedupeSorted(strings.Split(out, "\n")), nil
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// FetchPartitions returns the cluster's partitions. The default partition
// marker "*" is stripped before deduplication.
func (c *Client) FetchPartitions() ([]string, error) {
	c.mu.Lock()
	cached := c.partitions
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	out, stderr, err := c.t.Run(partitionsCommand)
	if err != nil {
		return nil, err
	}
	if stderr != "" {
		return nil, fmt.Errorf("%w: %s", cluster.ErrCommandFailed, stderr)
	}
	parts := dedupeSorted(strings.Split(strings.ReplaceAll(out, "*", ""), "\n"))

	c.mu.Lock()
	c.partitions = parts
	c.mu.Unlock()
	return parts, nil
}

// FetchAccounts returns the accounting buckets known to the cluster.
func (c *Client) FetchAccounts() ([]string, error) {
	return c.cachedLines(&c.accounts, accountsCommand)
}

// FetchQoS returns the named QoS policies.
func (c *Client) FetchQoS() ([]string, error) {
	return c.cachedLines(&c.qos, qosCommand)
}

// FetchConstraints returns the node feature constraints.
func (c *Client) FetchConstraints() ([]string, error) {
	c.mu.Lock()
	cached := c.constraints
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	out, stderr, err := c.t.Run(constraintsCommand)
	if err != nil {
		return nil, err
	}
	if stderr != "" {
		return nil, fmt.Errorf("%w: %s", cluster.ErrCommandFailed, stderr)
	}
	// Feature lists are themselves comma-separated per node line.
	var all []string
	for _, line := range strings.Split(out, "\n") {
		all = append(all, strings.Split(line, ",")...)
	}
	feats := dedupeSorted(all)

	c.mu.Lock()
	c.constraints = feats
	c.mu.Unlock()
	return feats, nil
}

// FetchGres returns the generic resource definition lines.
func (c *Client) FetchGres() ([]string, error) {
	c.mu.Lock()
	cached := c.gres
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	out, _, err := c.t.Run(gresCommand)
	if err != nil {
		return nil, err
	}
	var defs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "Name=") {
			defs = append(defs, line)
		}
	}
	defs = dedupeSorted(defs)

	c.mu.Lock()
	c.gres = defs
	c.mu.Unlock()
	return defs, nil
}

func (c *Client) cachedLines(cache *[]string, cmd string) ([]string, error) {
	c.mu.Lock()
	cached := *cache
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	lines, err := c.fetchLines(cmd)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	*cache = lines
	c.mu.Unlock()
	return lines, nil
}

// InvalidateCaches drops the enumeration caches, forcing a refetch on next
// access. Called after reconnecting.
func (c *Client) InvalidateCaches() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitions = nil
	c.accounts = nil
	c.qos = nil
	c.constraints = nil
	c.gres = nil
}

// ReadMaintenances returns the raw reservation listing, or "" when the
// cluster reports none.
func (c *Client) ReadMaintenances() (string, error) {
	out, _, err := c.t.Run(reservationsCommand)
	if err != nil {
		return "", err
	}
	if strings.Contains(out, "No reservations in the system") {
		return "", nil
	}
	return out, nil
}

// Submit uploads a ready-made batch script and submits it with sbatch. The
// script content is caller-supplied; this layer does no templating. On
// success the new job id is returned and a JobSubmitted event published.
func (c *Client) Submit(script, name string) (string, error) {
	remotePath := "/tmp/" + name
	if err := c.t.Upload(remotePath, script); err != nil {
		return "", fmt.Errorf("upload script: %w", err)
	}

	stdout, stderr, err := c.t.Run("sbatch " + remotePath)
	if err != nil {
		return "", err
	}
	if idx := strings.LastIndex(stdout, submittedPhrase); idx >= 0 {
		rest := strings.Fields(stdout[idx+len(submittedPhrase):])
		if len(rest) > 0 {
			jobID := rest[0]
			c.log.Info("job submitted", map[string]interface{}{"job_id": jobID})
			if c.bus != nil {
				c.bus.Publish(events.JobSubmitted, map[string]interface{}{
					"job_id": jobID,
				}, "slurm")
			}
			return jobID, nil
		}
	}
	if stderr != "" && !strings.Contains(stderr, "INFO") {
		return "", fmt.Errorf("%w: %s", cluster.ErrCommandFailed, stderr)
	}
	return "", fmt.Errorf("%w: sbatch reported no job id", cluster.ErrCommandFailed)
}

// Cancel asks the scheduler to cancel one job. Any stderr output is a
// failure.
func (c *Client) Cancel(jobID string) error {
	_, stderr, err := c.t.Run("scancel " + jobID)
	if err != nil {
		return err
	}
	if stderr != "" {
		return fmt.Errorf("%w: %s", cluster.ErrCommandFailed, stderr)
	}
	c.log.Info("job cancelled", map[string]interface{}{"job_id": jobID})
	if c.bus != nil {
		c.bus.Publish(events.JobCancelled, map[string]interface{}{
			"job_id": jobID,
		}, "slurm")
	}
	return nil
}
