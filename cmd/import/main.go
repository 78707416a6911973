package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/ZenRasta/Astroedge/internal/adapters/config"
	"github.com/ZenRasta/Astroedge/internal/adapters/database"
	"github.com/ZenRasta/Astroedge/internal/events"
	"github.com/ZenRasta/Astroedge/internal/impactmap"
	"github.com/ZenRasta/Astroedge/pkg/logger"
)

func main() {
	var (
		eventsFile = flag.String("events", "", "Aspect events YAML file (one quarter)")
		mapFile    = flag.String("map", "", "Impact map YAML file")
		activate   = flag.Bool("activate", false, "Activate the imported impact map version")
	)

	flag.Parse()

	if *eventsFile == "" && *mapFile == "" {
		fmt.Fprintln(os.Stderr, "nothing to import: pass -events and/or -map")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*eventsFile, *mapFile, *activate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(eventsFile, mapFile string, activate bool) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), "./migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx := context.Background()

	if eventsFile != "" {
		if err := importEvents(ctx, db, eventsFile); err != nil {
			return err
		}
	}

	if mapFile != "" {
		if err := importMap(ctx, db, mapFile, activate); err != nil {
			return err
		}
	}

	return nil
}

func importEvents(ctx context.Context, db *database.DB, path string) error {
	loaded, err := events.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	if err := events.NewRepository(db).SaveEvents(ctx, loaded); err != nil {
		return fmt.Errorf("failed to save events: %w", err)
	}

	fmt.Printf("Imported %d aspect events for quarter %s from %s\n",
		len(loaded), loaded[0].Quarter, path)
	return nil
}

func importMap(ctx context.Context, db *database.DB, path string, activate bool) error {
	version, err := impactmap.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load impact map: %w", err)
	}

	repo := impactmap.NewRepository(db)
	if err := repo.SaveVersion(ctx, version); err != nil {
		return fmt.Errorf("failed to save impact map: %w", err)
	}

	if activate {
		if err := repo.SetActive(ctx, version.ID); err != nil {
			return fmt.Errorf("failed to activate impact map: %w", err)
		}
	}

	fmt.Printf("Imported impact map %s (%d rules, active=%v) from %s\n",
		version.ID, len(version.Rules), activate, path)
	return nil
}
