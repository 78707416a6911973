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
	"github.com/ZenRasta/Astroedge/internal/backtest"
	"github.com/ZenRasta/Astroedge/internal/events"
	"github.com/ZenRasta/Astroedge/internal/impactmap"
	"github.com/ZenRasta/Astroedge/internal/markets"
	"github.com/ZenRasta/Astroedge/internal/reports"
	"github.com/ZenRasta/Astroedge/internal/results"
	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

func main() {
	var (
		name     = flag.String("name", "", "Run name")
		fromDate = flag.String("from", "", "Start date (YYYY-MM-DD)")
		toDate   = flag.String("to", "", "End date (YYYY-MM-DD)")
		step     = flag.Duration("step", 24*time.Hour, "Replay step")
		capital  = flag.Float64("capital", 1000, "Initial capital (USDC)")
		kind     = flag.String("kind", "backtest", "Run kind (backtest/forwardtest)")
		mapID    = flag.String("map", "", "Impact map version id (default: active version)")
		report   = flag.Bool("report", false, "Print the full run report with the equity curve")
	)

	flag.Parse()

	if err := run(*name, *fromDate, *toDate, *step, *capital, *kind, *mapID, *report); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(name, fromDate, toDate string, step time.Duration, capital float64, kind, mapID string, report bool) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	startDate, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	endDate, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
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

	mapRepo := impactmap.NewRepository(db)
	version, err := resolveMapVersion(ctx, mapRepo, mapID)
	if err != nil {
		return err
	}

	runCfg := &backtest.Config{
		Name:           name,
		Kind:           models.RunKind(kind),
		StartDate:      startDate,
		EndDate:        endDate,
		Step:           step,
		InitialCapital: capital,
		Params:         cfg.Scan.Params(),
		ImpactMap:      version,
	}

	fmt.Printf("\nRunning %s %s -> %s (step %v, capital $%.2f, map %s)\n\n",
		kind, fromDate, toDate, step, capital, version.ID)

	resultRepo := results.NewRepository(db)

	engine := backtest.NewEngine(
		events.NewRepository(db),
		markets.NewRepository(db),
		resultRepo,
		logger.Log,
	)

	result, err := engine.Run(ctx, runCfg)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printResult(result)

	if report {
		full, err := reports.NewGenerator(resultRepo).GenerateRunReport(ctx, result.Run.ID, 7)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}
		fmt.Println()
		fmt.Print(full.Render())
	}

	return nil
}

// resolveMapVersion loads the requested impact map version, or the
// active one when no id is given.
func resolveMapVersion(ctx context.Context, repo *impactmap.Repository, mapID string) (*models.ImpactMapVersion, error) {
	if mapID != "" {
		version, err := repo.GetVersion(ctx, mapID)
		if err != nil {
			return nil, fmt.Errorf("failed to load impact map %s: %w", mapID, err)
		}
		if version == nil {
			return nil, fmt.Errorf("impact map version %s not found", mapID)
		}
		return version, nil
	}

	version, err := repo.ActiveVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active impact map: %w", err)
	}
	if version == nil {
		return nil, fmt.Errorf("no active impact map version; import one first")
	}
	return version, nil
}

// printResult renders the run summary and trade table
func printResult(result *backtest.Result) {
	run := result.Run

	fmt.Printf("Run %s finished: %s\n", run.ID, run.Status)
	if run.FailureReason != "" {
		fmt.Printf("Reason: %s\n", run.FailureReason)
	}

	if m := run.Metrics; m != nil {
		fmt.Println()
		summary := tablewriter.NewWriter(os.Stdout)
		summary.Header("Metric", "Value")
		summary.Append("Total return", fmt.Sprintf("%+.2f%%", m.TotalReturn*100))
		summary.Append("Annualized return", fmt.Sprintf("%+.2f%%", m.AnnualizedReturn*100))
		summary.Append("Sharpe ratio", fmt.Sprintf("%.2f", m.SharpeRatio))
		summary.Append("Max drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100))
		summary.Append("Win rate", fmt.Sprintf("%.0f%%", m.WinRate*100))
		summary.Append("Profit factor", fmt.Sprintf("%.2f", m.ProfitFactor))
		summary.Append("Trades (closed/total)", fmt.Sprintf("%d/%d", m.ClosedTrades, m.TotalTrades))
		summary.Append("Total fees", fmt.Sprintf("$%.2f", m.TotalFees))
		summary.Append("Avg hold time", fmt.Sprintf("%.1fh", m.AvgHoldTimeHours))
		summary.Append("Final equity", fmt.Sprintf("$%.2f", m.FinalEquity))
		summary.Render()
	}

	if len(result.Trades) > 0 {
		fmt.Println()
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Market", "Side", "Qty", "Entry", "Exit", "PnL", "Fees")

		for _, t := range result.Trades {
			exit := "-"
			if t.ExitPrice != nil {
				exit = fmt.Sprintf("%.3f", *t.ExitPrice)
			}
			table.Append(
				truncate(t.MarketID, 24),
				string(t.Side),
				fmt.Sprintf("%.1f", t.Qty),
				fmt.Sprintf("%.3f", t.EntryPrice),
				exit,
				t.RealizedPnL.StringFixed(2),
				t.Fees.StringFixed(2),
			)
		}
		table.Render()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
