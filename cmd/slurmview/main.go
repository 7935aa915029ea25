package main

import (
	"os"

	"github.com/slurmview/slurmview/cmd/slurmview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
