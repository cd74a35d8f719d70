package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/engine"
)

var (
	runDryRun      bool
	runSchedule    string
	runMetricsAddr string
)

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute the plan but write nothing")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "cron expression; repeat the pass on this schedule")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the synchronization job",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildSyncer(cfgFile)
		if err != nil {
			return err
		}
		if runDryRun {
			s.SetDryRun(true)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if runMetricsAddr != "" {
			go serveMetrics(runMetricsAddr)
		}

		if runSchedule == "" {
			res := s.Sync(ctx)
			printResult(res)
			if !res.Success {
				os.Exit(1)
			}
			return nil
		}

		c := cron.New()
		if _, err := c.AddFunc(runSchedule, func() {
			printResult(s.Sync(ctx))
		}); err != nil {
			return fmt.Errorf("failed to schedule job: %w", err)
		}
		fmt.Printf("Scheduled %q (Ctrl+C to stop)\n", runSchedule)
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}

func printResult(res *engine.Result) {
	status := "OK"
	if !res.Success {
		status = "FAILED"
	}
	fmt.Printf("[%s] added=%d updated=%d unchanged=%d errors=%d in %s\n",
		status, res.Added, res.Updated, res.Unchanged, res.Errors, res.Duration)
	for _, d := range res.Details {
		fmt.Println("  " + d)
	}
}
