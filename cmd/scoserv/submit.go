package main

import (
	"os"

	"github.com/aretw0/scoserv/internal/cli"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <experiment-id>",
	Short: "Schedule a model run for an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		model, _ := cmd.Flags().GetString("model")
		arguments, _ := cmd.Flags().GetString("args")
		return cli.Submit(globalOptions(cmd), cli.SubmitOptions{
			ExperimentID: args[0],
			Name:         name,
			Model:        model,
			Arguments:    arguments,
		}, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringP("name", "n", "", "Run name (default: the model name)")
	submitCmd.Flags().StringP("model", "m", "sco", "Registered model to run")
	submitCmd.Flags().String("args", "", "Run arguments as a JSON object")
}
