package slurm

import (
	"strconv"
	"strings"

	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/models"
)

// Column order of the squeue -O format string in queueCommand. The layout
// is fixed; parsing is positional.
const (
	colJobID = iota
	colReason
	colNodeList
	colUser
	colTresPerJob
	colTresPerTask
	colTresPerNode
	colName
	colPartition
	colStateCompact
	colTimeLimit
	colTimeUsed
	colNumNodes
	colNumTasks
	colReasonDup
	colMinMemory
	colMinCpus
	colAccount
	colPriority
	colJobIDDup
	colTres
	colNice

	// minQueueFields is the least a row may have and still be parsed;
	// colTres is the last column we read.
	minQueueFields = 21
)

// ParseQueue converts semicolon-delimited squeue output into job records.
// The first line is the header. Rows with fewer than minQueueFields columns
// are skipped with a warning; one bad row never fails the whole parse.
func ParseQueue(out string, log *logging.Logger) []models.JobRecord {
	lines := strings.Split(out, "\n")
	jobs := make([]models.JobRecord, 0, len(lines))

	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < minQueueFields {
			if log != nil {
				log.Warn("skipping malformed queue row", map[string]interface{}{
					"row": i, "fields": len(fields),
				})
			}
			continue
		}
		jobs = append(jobs, parseQueueRow(fields))
	}
	return jobs
}

func parseQueueRow(fields []string) models.JobRecord {
	raw := fields[colStateCompact]
	job := models.JobRecord{
		ID:        fields[colJobID],
		Name:      fields[colName],
		User:      fields[colUser],
		Account:   fields[colAccount],
		Partition: fields[colPartition],
		Status:    models.CanonicalStatus(raw),
		RawStatus: raw,
		TimeLimit: fields[colTimeLimit],
		TimeUsed:  ParseElapsed(fields[colTimeUsed]),
		NodeList:  fields[colNodeList],
		Reason:    fields[colReason],
		Memory:    fields[colMinMemory],
	}

	if p, err := strconv.Atoi(fields[colPriority]); err == nil {
		job.Priority = p
	}

	// The tres column repeats the allocation as comma-separated key=value
	// fragments; cpu, mem, billing and any gres/<kind> count are typed.
	for _, part := range strings.Split(fields[colTres], ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch {
		case key == "cpu":
			if n, err := strconv.Atoi(value); err == nil {
				job.CPUs = n
			}
		case key == "mem":
			job.Memory = value
		case key == "billing":
			if n, err := strconv.Atoi(value); err == nil {
				job.Billing = n
			}
		case strings.HasPrefix(key, "gres/"):
			if n, err := strconv.Atoi(value); err == nil {
				if job.Gres == nil {
					job.Gres = make(map[string]int)
				}
				job.Gres[key] = n
			}
		}
	}

	// A pending job has no meaningful node list; surface the reason there
	// so consumers render something useful. The original reason column is
	// still available in Reason.
	if job.Status == models.JobStatusPending {
		job.NodeList = job.Reason
	}
	return job
}
