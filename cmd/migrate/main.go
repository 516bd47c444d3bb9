package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/serroba/online-compiler-go/internal/store/migrations"
	"go.uber.org/zap"
)

func main() {
	var (
		action      string
		databaseURL string
		steps       int
	)

	flag.StringVar(&action, "action", "up", "Migration action: up | down | steps | version")
	flag.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.IntVar(&steps, "steps", 0, "Number of steps for -action=steps (positive for up, negative for down)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	defer func() { _ = logger.Sync() }()

	if databaseURL == "" {
		logger.Fatal("DATABASE_URL is required (set env var or use -database-url)")
	}

	runner, err := migrations.NewRunner(databaseURL, logger)
	if err != nil {
		logger.Fatal("failed to initialize migration runner", zap.Error(err))
	}
	defer runner.Close()

	switch action {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	case "steps":
		if steps == 0 {
			logger.Fatal("-steps must be non-zero when -action=steps")
		}

		err = runner.Steps(steps)
	case "version":
	default:
		logger.Fatal("unsupported action", zap.String("action", action))
	}

	if err != nil {
		logger.Fatal("migration action failed", zap.String("action", action), zap.Error(err))
	}

	current, dirty, err := runner.Version()
	if err != nil {
		logger.Fatal("version lookup failed", zap.Error(err))
	}

	logger.Info("migration action completed",
		zap.String("action", action),
		zap.Uint("version", current),
		zap.Bool("dirty", dirty),
	)
}
