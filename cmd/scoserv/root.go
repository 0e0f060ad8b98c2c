package main

import (
	"fmt"
	"os"

	"github.com/aretw0/scoserv/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scoserv",
	Short: "scoserv stores research records and runs predictive models over them",
	Long: `scoserv keeps subjects, stimulus images, image groups, experiments and model
runs, and executes model runs through a direct, queue or socket transport.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// globalOptions reads the persistent flags.
func globalOptions(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{ConfigPath: configPath, LogLevel: level, Debug: debug}
}
