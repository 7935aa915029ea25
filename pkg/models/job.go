package models

import (
	"time"
)

// JobStatus is the canonical state of a queued or running job.
type JobStatus string

const (
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusCompleting  JobStatus = "COMPLETING"
	JobStatusFailed      JobStatus = "FAILED"
	JobStatusPending     JobStatus = "PENDING"
	JobStatusPreempted   JobStatus = "PREEMPTED"
	JobStatusRunning     JobStatus = "RUNNING"
	JobStatusSuspended   JobStatus = "SUSPENDED"
	JobStatusStopped     JobStatus = "STOPPED"
	JobStatusCancelled   JobStatus = "CANCELLED"
	JobStatusTimeout     JobStatus = "TIMEOUT"
	JobStatusNodeFail    JobStatus = "NODE_FAIL"
	JobStatusRevoked     JobStatus = "REVOKED"
	JobStatusSpecialExit JobStatus = "SPECIAL_EXIT"
	JobStatusOutOfMemory JobStatus = "OUT_OF_MEMORY"
	JobStatusBootFail    JobStatus = "BOOT_FAIL"
	JobStatusDeadline    JobStatus = "DEADLINE"
	JobStatusOther       JobStatus = "OTHER"
	JobStatusUnknown     JobStatus = "UNKNOWN"
)

// jobCodes maps the compact state codes reported by squeue to canonical
// statuses. Codes not in the table canonicalize to JobStatusUnknown.
var jobCodes = map[string]JobStatus{
	"CD":  JobStatusCompleted,
	"CG":  JobStatusCompleting,
	"F":   JobStatusFailed,
	"PD":  JobStatusPending,
	"PR":  JobStatusPreempted,
	"R":   JobStatusRunning,
	"S":   JobStatusSuspended,
	"ST":  JobStatusStopped,
	"CA":  JobStatusCancelled,
	"TO":  JobStatusTimeout,
	"NF":  JobStatusNodeFail,
	"RV":  JobStatusRevoked,
	"SE":  JobStatusSpecialExit,
	"OOM": JobStatusOutOfMemory,
	"BF":  JobStatusBootFail,
	"DL":  JobStatusDeadline,
	"OT":  JobStatusOther,
}

// CanonicalStatus resolves a compact squeue state code. It is total: any
// code absent from the table yields JobStatusUnknown, never an error.
func CanonicalStatus(code string) JobStatus {
	if st, ok := jobCodes[code]; ok {
		return st
	}
	return JobStatusUnknown
}

// Terminal reports whether the status can no longer change on its own.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled,
		JobStatusTimeout, JobStatusNodeFail, JobStatusOutOfMemory,
		JobStatusBootFail, JobStatusDeadline:
		return true
	}
	return false
}

// JobRecord is one entry of the work queue as reported by squeue. Records
// are rebuilt from scratch on every poll cycle and never mutated in place.
type JobRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	User      string    `json:"user"`
	Account   string    `json:"account"`
	Partition string    `json:"partition"`
	Status    JobStatus `json:"status"`
	// RawStatus keeps the compact code exactly as squeue printed it,
	// for diagnostics when Status is UNKNOWN.
	RawStatus string        `json:"raw_status"`
	TimeLimit string        `json:"time_limit"`
	TimeUsed  time.Duration `json:"time_used"`
	Priority  int           `json:"priority"`
	// NodeList holds the assigned nodes, or the pending reason when the
	// job is PENDING (the node list is meaningless then).
	NodeList string         `json:"node_list"`
	Reason   string         `json:"reason"`
	CPUs     int            `json:"cpus"`
	Memory   string         `json:"memory"`
	Gres     map[string]int `json:"gres,omitempty"`
	Billing  int            `json:"billing"`
}

// GPUs returns the requested gres/gpu count, zero when none was requested.
func (j *JobRecord) GPUs() int {
	return j.Gres["gres/gpu"]
}

// Equal reports field-wise equality. JobRecord carries a map, so it is not
// comparable with ==; the diff engine depends on this method instead.
func (j *JobRecord) Equal(other *JobRecord) bool {
	if j == nil || other == nil {
		return j == other
	}
	if j.ID != other.ID ||
		j.Name != other.Name ||
		j.User != other.User ||
		j.Account != other.Account ||
		j.Partition != other.Partition ||
		j.Status != other.Status ||
		j.RawStatus != other.RawStatus ||
		j.TimeLimit != other.TimeLimit ||
		j.TimeUsed != other.TimeUsed ||
		j.Priority != other.Priority ||
		j.NodeList != other.NodeList ||
		j.Reason != other.Reason ||
		j.CPUs != other.CPUs ||
		j.Memory != other.Memory ||
		j.Billing != other.Billing {
		return false
	}
	if len(j.Gres) != len(other.Gres) {
		return false
	}
	for k, v := range j.Gres {
		if other.Gres[k] != v {
			return false
		}
	}
	return true
}
