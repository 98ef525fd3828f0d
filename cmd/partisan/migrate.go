package main

import (
	"flag"
	"fmt"

	"github.com/go-partisan/partisan/internal/config"
	"github.com/go-partisan/partisan/internal/store"
	"github.com/go-partisan/partisan/pkg/logger"
)

// migrateCommand implements `partisan migrate <up|down|version>`, adapted
// from the teacher's cmd/migrate.
func migrateCommand(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: partisan migrate <up|down|version>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)

	migrator, err := store.NewMigrator(&store.MigrateConfig{
		DatabaseConfig: &cfg.Database,
		Logger:         log.Logger,
	})
	if err != nil {
		return fmt.Errorf("initialize migrator: %w", err)
	}
	defer migrator.Close()

	switch fs.Arg(0) {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate subcommand %q", fs.Arg(0))
	}
}
