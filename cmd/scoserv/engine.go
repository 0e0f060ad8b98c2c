package main

import (
	"github.com/aretw0/scoserv/internal/cli"
	"github.com/spf13/cobra"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Serve the engine socket protocol",
	Long:  `Accepts run requests over TCP and executes them on a bounded pool of workers.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")
		return cli.RunEngine(globalOptions(cmd), addr)
	},
}

func init() {
	rootCmd.AddCommand(engineCmd)
	engineCmd.Flags().StringP("listen", "l", "", "Address to listen on (default: dispatch.socket_addr)")
}
