package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that source and destination are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildSyncer(cfgFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		conns := s.TestConnections(ctx)
		fmt.Printf("source:      %s\n", okOrFail(conns.Source))
		fmt.Printf("destination: %s\n", okOrFail(conns.Destination))
		if !conns.Source || !conns.Destination {
			os.Exit(1)
		}
		return nil
	},
}

func okOrFail(ok bool) string {
	if ok {
		return "OK"
	}
	return "UNREACHABLE"
}
