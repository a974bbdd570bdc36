package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pricewatch/internal/app"
	"github.com/ternarybob/pricewatch/internal/normalize"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List crawl targets and their last crawl",
	RunE:  runTargets,
}

func runTargets(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	targets, err := application.StorageManager.TargetStorage().List(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("No targets configured (see seed.targets_file)")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tACTIVE\tLAST STATUS\tDEALS AT\tSTALE")
	for _, t := range targets {
		dealsAt := "-"
		if t.LastCrawl.DealsAt != nil {
			dealsAt = t.LastCrawl.DealsAt.Local().Format("2006-01-02 15:04")
		}
		status := t.LastCrawl.Status
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%t\n",
			t.Slug, t.Name, t.IsActive, status, dealsAt,
			normalize.IsDataStale(t.LastCrawl.DealsAt, config.StaleAfter(), now))
	}
	return w.Flush()
}
