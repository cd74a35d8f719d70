package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a pass would do without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildSyncer(cfgFile)
		if err != nil {
			return err
		}
		s.SetDryRun(true)

		res := s.Sync(context.Background())
		printResult(res)
		if !res.Success {
			os.Exit(1)
		}
		return nil
	},
}
