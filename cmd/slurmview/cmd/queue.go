package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	queueUser   string
	queueStatus string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List the work queue",
	Long:  `Connects to the cluster, fetches the job queue once and prints it.`,
	RunE:  runQueue,
}

func init() {
	rootCmd.AddCommand(queueCmd)

	queueCmd.Flags().StringVar(&queueUser, "user", "", "only show jobs of this user")
	queueCmd.Flags().StringVar(&queueStatus, "status", "", "only show jobs with this canonical status (e.g. RUNNING)")
}

func runQueue(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if err := e.connect(context.Background()); err != nil {
		return err
	}
	defer e.session.Disconnect()

	jobs, err := e.client.FetchQueue()
	if err != nil {
		return fmt.Errorf("fetch queue: %w", err)
	}

	filtered := jobs[:0:0]
	for _, j := range jobs {
		if queueUser != "" && j.User != queueUser {
			continue
		}
		if queueStatus != "" && string(j.Status) != queueStatus {
			continue
		}
		filtered = append(filtered, j)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(filtered)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job ID", "Name", "User", "Account", "Partition", "Status", "Time Used", "Time Limit", "Nodes/Reason", "CPUs", "Mem", "GPUs", "Priority")
	for _, j := range filtered {
		table.Append(
			j.ID,
			j.Name,
			j.User,
			j.Account,
			j.Partition,
			string(j.Status),
			j.TimeUsed.String(),
			j.TimeLimit,
			j.NodeList,
			fmt.Sprintf("%d", j.CPUs),
			j.Memory,
			fmt.Sprintf("%d", j.GPUs()),
			fmt.Sprintf("%d", j.Priority),
		)
	}
	table.Render()
	fmt.Printf("\n%d jobs\n", len(filtered))
	return nil
}
