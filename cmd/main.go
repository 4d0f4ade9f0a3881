package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/upcoming/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	if p := os.Getenv("UPCOMING_CONFIG"); p != "" {
		configPath = p
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loadedConfig, err := shared.LoadConfig(configPath)
		if err != nil {
			logger.Fatalf("failed to load %s: %v", configPath, err)
		}
		config = loadedConfig
	}

	if err := config.ApplyEnv(".env"); err != nil {
		logger.Fatalf("failed to apply environment: %v", err)
	}
	if err := config.Validate(); err != nil {
		logger.Fatalf("%v", err)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		logger.Fatalf("failed to run migrations: %v", err)
	}

	runner, err := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		DB:         db,
		Logger:     logger,
	})
	if err != nil {
		db.Close()
		logger.Fatalf("failed to initialize: %v", err)
	}

	app := &cli.Command{
		Name:    "upcoming",
		Usage:   "Keep a Spotify playlist of upcoming shows for each venue",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, os.Args)
	stop()
	db.Close()

	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
