package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/olekukonko/tablewriter"

	"github.com/ZenRasta/Astroedge/internal/adapters/config"
	"github.com/ZenRasta/Astroedge/internal/adapters/database"
	"github.com/ZenRasta/Astroedge/internal/events"
	"github.com/ZenRasta/Astroedge/internal/impactmap"
	"github.com/ZenRasta/Astroedge/internal/markets"
	"github.com/ZenRasta/Astroedge/internal/pipeline"
	"github.com/ZenRasta/Astroedge/internal/results"
	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

func main() {
	var (
		at      = flag.String("at", "", "Scan time (RFC3339, default now)")
		workers = flag.Int("workers", 0, "Analysis workers (0 = NumCPU*2)")
		save    = flag.Bool("save", false, "Persist opportunities and contributions")
		limit   = flag.Int("limit", 25, "Max rows to print")
	)

	flag.Parse()

	if err := run(*at, *workers, *save, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(at string, workers int, save bool, limit int) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	scanTime := time.Now().UTC()
	if at != "" {
		scanTime, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid scan time: %w", err)
		}
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), "./migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx := context.Background()

	version, err := impactmap.NewRepository(db).ActiveVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active impact map: %w", err)
	}
	if version == nil {
		return fmt.Errorf("no active impact map version; import one first")
	}

	var sink pipeline.ResultSink
	if save {
		sink = results.NewRepository(db)
	}

	scan := pipeline.New(
		events.NewRepository(db),
		markets.NewRepository(db),
		sink,
		version,
		pipeline.Options{Workers: workers},
		logger.Log,
	)

	result, err := scan.Scan(ctx, scanTime, cfg.Scan.Params())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	printScan(result, version.ID, limit)
	return nil
}

// printScan renders the ranked opportunity table
func printScan(result *pipeline.Result, versionID string, limit int) {
	fmt.Printf("\nScan at %s (map %s): %d markets scored, %d actionable, %d errors\n\n",
		result.ScanTime.Format(time.RFC3339), versionID,
		len(result.Opportunities), len(result.Actionable()), result.MarketErrors)

	if len(result.Opportunities) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Market", "Decision", "P0", "P_astro", "S", "Edge", "Size", "Skip")

	rows := result.Opportunities
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	for i, o := range rows {
		skip := string(o.SkipReason)
		if o.Decision != models.DecisionHold {
			skip = ""
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(o.MarketID, 24),
			string(o.Decision),
			fmt.Sprintf("%.3f", o.P0),
			fmt.Sprintf("%.3f", o.PAstro),
			fmt.Sprintf("%+.2f", o.SAstro),
			fmt.Sprintf("%+.3f", o.EdgeNet),
			fmt.Sprintf("%.1f%%", o.SizeFrac*100),
			skip,
		)
	}
	table.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
