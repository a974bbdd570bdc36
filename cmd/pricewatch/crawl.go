package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/pricewatch/internal/app"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

var (
	crawlType          string
	crawlTarget        string
	crawlAll           bool
	crawlCategory      string
	crawlAttempts      int
	crawlRetryInterval time.Duration
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a crawl for one or all active targets",
	Long: `Runs a products or deals crawl with retry for one target (--target=<slug>)
or every active target (--all). Exits non-zero when any target fails.`,
	Example: `  pricewatch crawl --type=deals --all
  pricewatch crawl --type=products --target=globus --category=obst-gemuese`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&crawlType, "type", "deals", "Crawl type: products or deals")
	crawlCmd.Flags().StringVar(&crawlTarget, "target", "", "Target slug")
	crawlCmd.Flags().BoolVar(&crawlAll, "all", false, "Crawl every active target")
	crawlCmd.Flags().StringVar(&crawlCategory, "category", "", "Products only: crawl a single category slug")
	crawlCmd.Flags().IntVar(&crawlAttempts, "attempts", 0, "Attempts per target (default from scheduler.max_attempts)")
	crawlCmd.Flags().DurationVar(&crawlRetryInterval, "retry-interval", 0, "Wait between attempts (default from scheduler.retry_interval)")
	crawlCmd.MarkFlagsMutuallyExclusive("target", "all")
	crawlCmd.MarkFlagsOneRequired("target", "all")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	kind, err := models.ParseCrawlKind(crawlType)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	targets, err := resolveTargets(ctx, application)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println("No active targets to crawl")
		return nil
	}

	attempts := crawlAttempts
	if attempts <= 0 {
		attempts = config.Scheduler.MaxAttempts
	}
	var opts []models.CrawlOption
	if crawlRetryInterval > 0 {
		opts = append(opts, models.WithRetryInterval(crawlRetryInterval))
	}
	if crawlCategory != "" {
		opts = append(opts, models.WithCategory(crawlCategory))
	}

	failed := 0
	for _, target := range targets {
		fmt.Printf("Crawling %s for %s...\n", kind, target.Name)

		result, err := application.Scheduler.RunWithRetry(ctx, target.ID, kind, attempts, opts...)
		if err != nil {
			failed++
			fmt.Printf("  ✗ %s: %v\n", target.Name, err)
			continue
		}
		if !result.Success {
			failed++
			fmt.Printf("  ✗ %s: %s\n", target.Name, result.Message)
			continue
		}
		fmt.Printf("  ✓ %s: %s\n", target.Name, result.Message)
	}

	fmt.Printf("\nCrawl complete: %d succeeded, %d failed\n", len(targets)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}

func resolveTargets(ctx context.Context, application *app.App) ([]*models.Target, error) {
	storage := application.StorageManager.TargetStorage()
	if crawlAll {
		return storage.FindActive(ctx)
	}

	target, err := storage.FindBySlug(ctx, crawlTarget)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, fmt.Errorf("target %q not found", crawlTarget)
		}
		return nil, err
	}
	return []*models.Target{target}, nil
}
