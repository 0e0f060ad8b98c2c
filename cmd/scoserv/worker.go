package main

import (
	"github.com/aretw0/scoserv/internal/cli"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued model runs",
	Long:  `Consumes run requests from the configured redis or amqp queue and executes them one at a time.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunWorker(globalOptions(cmd))
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
