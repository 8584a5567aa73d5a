package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fleetwear/internal/backend"
	"fleetwear/internal/db"
	"fleetwear/internal/events"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one fleet scan with the service token and print the results",
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer conn.Close()

	scanner := newScanner(cfg, conn, events.NewBus(), backend.New(cfg.Backend), nil)
	if scanner == nil {
		return errors.New("backend.service_token is required for scan")
	}
	report, err := scanner.ScanOnce(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tVEHICLE\tMETRIC\tHEALTH\tSEVERITY\tVALUE")
	for _, v := range report.Vehicles {
		for _, r := range v.Readings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
				v.Kind, v.Name, r.Metric, r.Percentage, r.Severity, r.DisplayValue)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s vehicles in %s, %d tier changes, %s old readings pruned\n",
		humanize.Comma(int64(len(report.Vehicles))), report.Duration, report.Transitions,
		humanize.Comma(report.Pruned))
	return nil
}
