package main

import (
	"github.com/aretw0/scoserv/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Execute a single model run",
	Long:  `Executes one scheduled model run to a terminal state. The direct transport spawns this command.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunOnce(globalOptions(cmd), args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
