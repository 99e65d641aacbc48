package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <case-id>",
	Short: "Show the state of a generation run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		registry, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer registry.Close()

		t, err := registry.Get(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "case %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
