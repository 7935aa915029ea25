package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/slurmview/slurmview/pkg/models"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List cluster nodes",
	Long:  `Connects to the cluster, fetches the node inventory once and prints it.`,
	RunE:  runNodes,
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}

func runNodes(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if err := e.connect(context.Background()); err != nil {
		return err
	}
	defer e.session.Disconnect()

	nodes, err := e.client.FetchNodes()
	if err != nil {
		return fmt.Errorf("fetch nodes: %w", err)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Node", "State", "Category", "Partitions", "CPU (alloc/total)", "Mem (alloc/total)", "GPU (alloc/total)", "Reserved")
	for _, n := range nodes {
		table.Append(
			n.Name,
			strings.Join(n.States, "+"),
			string(n.Category),
			strings.Join(n.Partitions, ","),
			resourcePair(n, "cpu"),
			resourcePair(n, "mem"),
			resourcePair(n, "gres/gpu"),
			yesNo(n.Reserved),
		)
	}
	table.Render()
	fmt.Printf("\n%d nodes\n", len(nodes))
	return nil
}

// resourcePair renders "alloc/total" for one resource kind. Either side may
// be absent; absent means zero.
func resourcePair(n models.NodeRecord, key string) string {
	alloc := n.Allocated[key]
	total := n.Total[key]
	if alloc == "" {
		alloc = "0"
	}
	if total == "" {
		total = "0"
	}
	return alloc + "/" + total
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
