package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/scoserv"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of scoserv",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scoserv version %s\n", strings.TrimSpace(scoserv.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
