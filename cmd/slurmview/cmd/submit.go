package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var submitName string

var submitCmd = &cobra.Command{
	Use:   "submit <script.sbatch>",
	Short: "Submit a batch script",
	Long: `Uploads a ready-made batch script to the cluster and submits it with
sbatch. The script is used as-is; slurmview does not generate or template
submission scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(cancelCmd)

	submitCmd.Flags().StringVar(&submitName, "name", "", "remote script name (default: local file name)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	script, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	name := submitName
	if name == "" {
		name = filepath.Base(args[0])
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	if err := e.connect(context.Background()); err != nil {
		return err
	}
	defer e.session.Disconnect()

	jobID, err := e.client.Submit(string(script), name)
	if err != nil {
		return err
	}
	fmt.Printf("Submitted batch job %s\n", jobID)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if err := e.connect(context.Background()); err != nil {
		return err
	}
	defer e.session.Disconnect()

	if err := e.client.Cancel(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cancelled job %s\n", args[0])
	return nil
}
