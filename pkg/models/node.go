package models

import (
	"strings"
)

// NodeStateCategory is a closed classification of a node's scheduler state.
// Substring matching against the raw state string happens exactly once, in
// CategorizeNodeState; everything downstream switches on the category.
type NodeStateCategory string

const (
	NodeStateIdle      NodeStateCategory = "idle"
	NodeStateAllocated NodeStateCategory = "allocated"
	NodeStateMixed     NodeStateCategory = "mixed"
	NodeStateDown      NodeStateCategory = "down"
	NodeStateDrain     NodeStateCategory = "drain"
	NodeStateUnknown   NodeStateCategory = "unknown"
)

// CategorizeNodeState maps a raw scontrol state value (e.g. "MIXED+DRAIN")
// onto a single category. Drain and down win over scheduling states because
// they make the node unusable for new work.
func CategorizeNodeState(raw string) NodeStateCategory {
	s := strings.ToUpper(raw)
	switch {
	case strings.Contains(s, "DRAIN"):
		return NodeStateDrain
	case strings.Contains(s, "DOWN"):
		return NodeStateDown
	case strings.Contains(s, "MIXED"):
		return NodeStateMixed
	case strings.Contains(s, "ALLOC"):
		return NodeStateAllocated
	case strings.Contains(s, "IDLE"):
		return NodeStateIdle
	default:
		return NodeStateUnknown
	}
}

// NodeRecord is one cluster node as reported by scontrol show nodes.
//
// Total and Allocated are independent resource maps: a key present in one
// need not exist in the other (absent means zero). Consumers must not
// assume symmetry.
type NodeRecord struct {
	Name       string            `json:"name"`
	States     []string          `json:"states"`
	Category   NodeStateCategory `json:"category"`
	Partitions []string          `json:"partitions"`
	Reserved   bool              `json:"reserved"`
	Total      map[string]string `json:"total"`
	Allocated  map[string]string `json:"allocated"`
	// Fields keeps the remaining Key=Value pairs from the paragraph
	// (Arch, CPULoad, ...) for consumers that need more than the typed
	// columns.
	Fields map[string]string `json:"fields,omitempty"`
}
