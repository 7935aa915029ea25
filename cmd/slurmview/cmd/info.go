package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cluster facts and submission options",
	Long: `Connects to the cluster and prints basic facts (hostname, scheduler
version, node count) together with the enumerated submission options:
partitions, accounts, QoS policies, node constraints and generic resources.
Also lists any active maintenance reservations.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if err := e.connect(context.Background()); err != nil {
		return err
	}
	defer e.session.Disconnect()

	info, err := e.client.FetchClusterInfo()
	if err != nil {
		return fmt.Errorf("fetch cluster info: %w", err)
	}
	partitions, err := e.client.FetchPartitions()
	if err != nil {
		return fmt.Errorf("fetch partitions: %w", err)
	}
	accounts, err := e.client.FetchAccounts()
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}
	qos, err := e.client.FetchQoS()
	if err != nil {
		return fmt.Errorf("fetch qos: %w", err)
	}
	constraints, err := e.client.FetchConstraints()
	if err != nil {
		return fmt.Errorf("fetch constraints: %w", err)
	}
	gres, err := e.client.FetchGres()
	if err != nil {
		return fmt.Errorf("fetch gres: %w", err)
	}
	maintenances, err := e.client.ReadMaintenances()
	if err != nil {
		return fmt.Errorf("read reservations: %w", err)
	}

	if outputFormat == "json" {
		out := map[string]interface{}{
			"cluster":      info,
			"partitions":   partitions,
			"accounts":     accounts,
			"qos":          qos,
			"constraints":  constraints,
			"gres":         gres,
			"maintenances": maintenances,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Cluster:     %s (%s)\n", info.Hostname, info.Version)
	fmt.Printf("User:        %s\n", info.User)
	fmt.Printf("Nodes:       %s\n", info.NodeCount)
	fmt.Printf("Partitions:  %s\n", strings.Join(partitions, ", "))
	fmt.Printf("Accounts:    %s\n", strings.Join(accounts, ", "))
	fmt.Printf("QoS:         %s\n", strings.Join(qos, ", "))
	fmt.Printf("Constraints: %s\n", strings.Join(constraints, ", "))
	if len(gres) > 0 {
		fmt.Printf("GRES:\n")
		for _, g := range gres {
			fmt.Printf("  %s\n", g)
		}
	}
	if maintenances != "" {
		fmt.Printf("\nMaintenance reservations:\n%s\n", maintenances)
	}
	return nil
}
