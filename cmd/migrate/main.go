// Package main applies the embedded PostgreSQL schema.
// Usage: migrate [--config path] up|down|version|steps <n>|force <version>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"medcore/internal/infrastructure/config"
	"medcore/internal/infrastructure/storage/postgres/migrations"
	"medcore/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [--config path] up|down|version|steps <n>|force <version>")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if cfg.Database.URL == "" {
		log.Fatal("database.url (MEDCORE_DATABASE_URL) is required")
	}

	m, err := migrations.New(cfg.Database.URL)
	if err != nil {
		log.Fatalw("failed to open migrations", "error", err)
	}

	if err := run(context.Background(), m, flag.Args()); err != nil {
		_ = m.Close()
		log.Fatalw("migration failed", "command", flag.Arg(0), "error", err)
	}
	if err := m.Close(); err != nil {
		log.Warnw("failed to close migrator", "error", err)
	}
}

func run(ctx context.Context, m *migrations.Migrator, args []string) error {
	switch args[0] {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Steps(ctx, n)
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(ctx, v)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a number", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", args[0], err)
	}
	return n, nil
}
