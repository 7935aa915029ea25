package slurm

import (
	"strings"

	"github.com/slurmview/slurmview/pkg/models"
)

// ParseNodes converts `scontrol show nodes` output into node records.
//
// The output is one paragraph per node separated by blank lines, each line
// holding whitespace-separated Key=Value tokens. CfgTRES and AllocTRES
// values are themselves comma-separated sub-pair lists and land in the
// Total/Allocated resource maps instead of the flat field map. Paragraphs
// without a NodeName are dropped, never fatal.
func ParseNodes(out string) []models.NodeRecord {
	paragraphs := strings.Split(out, "\n\n")
	nodes := make([]models.NodeRecord, 0, len(paragraphs))

	for _, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		node := parseNodeParagraph(para)
		if node.Name == "" {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func parseNodeParagraph(para string) models.NodeRecord {
	node := models.NodeRecord{
		Total:     make(map[string]string),
		Allocated: make(map[string]string),
		Fields:    make(map[string]string),
	}

	// Values containing spaces (Reason=... timestamps) get split across
	// tokens here; the stray fragments carry no "=" and are skipped,
	// which is exactly how the text has always been consumed.
	for _, token := range strings.Fields(para) {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}

		switch key {
		case "NodeName":
			node.Name = value
		case "CfgTRES":
			parseTRES(value, node.Total)
		case "AllocTRES":
			parseTRES(value, node.Allocated)
		case "State":
			node.States = strings.Split(value, "+")
			node.Reserved = strings.Contains(strings.ToUpper(value), "RESERVED")
			node.Category = models.CategorizeNodeState(value)
			node.Fields[key] = value
		case "Partitions":
			node.Partitions = strings.Split(value, ",")
			node.Fields[key] = value
		default:
			node.Fields[key] = value
		}
	}
	return node
}
