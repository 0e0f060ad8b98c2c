package main

import (
	"github.com/aretw0/scoserv/internal/cli"
	"github.com/spf13/cobra"
)

var serveAdminCmd = &cobra.Command{
	Use:   "serve-admin",
	Short: "Serve metrics and health endpoints",
	Long:  `Serves /metrics, /healthz and /info without consuming runs.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("listen")
		return cli.RunAdmin(globalOptions(cmd), addr)
	},
}

func init() {
	rootCmd.AddCommand(serveAdminCmd)
	serveAdminCmd.Flags().StringP("listen", "l", ":9090", "Address to listen on")
}
