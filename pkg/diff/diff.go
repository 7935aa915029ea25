// Package diff computes minimal change-sets between two full snapshots of
// the work queue, so consumers can react to changes without rescanning
// every record.
package diff

import (
	"github.com/slurmview/slurmview/pkg/models"
)

// Change pairs the old and new version of an updated record, letting a
// consumer see which fields moved (status transitions in particular).
type Change struct {
	ID  string           `json:"id"`
	Old models.JobRecord `json:"old"`
	New models.JobRecord `json:"new"`
}

// Result holds three disjoint sets: ids only in the current snapshot, ids
// only in the previous one, and ids present in both whose records differ.
type Result struct {
	Added   []models.JobRecord `json:"added"`
	Removed []string           `json:"removed"`
	Updated []Change           `json:"updated"`
}

// Empty reports whether the snapshots were identical.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Updated) == 0
}

// Snapshot keys a slice of records by job id, the shape Diff consumes.
// Later duplicates win, which cannot happen in well-formed squeue output.
func Snapshot(jobs []models.JobRecord) map[string]models.JobRecord {
	m := make(map[string]models.JobRecord, len(jobs))
	for _, j := range jobs {
		m[j.ID] = j
	}
	return m
}

// Diff compares two snapshots keyed by job id in linear time. Records
// present in both snapshots and field-wise equal appear in no set, so
// Diff(s, s) is always empty.
func Diff(previous, current map[string]models.JobRecord) Result {
	var res Result
	for id, cur := range current {
		prev, ok := previous[id]
		if !ok {
			res.Added = append(res.Added, cur)
			continue
		}
		if !prev.Equal(&cur) {
			res.Updated = append(res.Updated, Change{ID: id, Old: prev, New: cur})
		}
	}
	for id := range previous {
		if _, ok := current[id]; !ok {
			res.Removed = append(res.Removed, id)
		}
	}
	return res
}
