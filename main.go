package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/briangreenhill/hrmerge/internal/cli"
	"github.com/briangreenhill/hrmerge/internal/config"
	"github.com/briangreenhill/hrmerge/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Error loading config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg)

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Error("Error opening database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	mergeService := store.NewService(db, logger)
	if err := mergeService.Init(ctx); err != nil {
		logger.Error("Error creating table", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(ctx, os.Stdout, os.Args[1:], cfg, logger, mergeService); err != nil {
		logger.Error("Error running hrmerge", slog.Any("error", err))
		db.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, args []string, cfg config.Config, logger *slog.Logger, mergeService *store.Service) error {
	c := cli.NewCLI(w, logger, cfg, mergeService)

	if err := c.Run(ctx, args); err != nil {
		return err
	}

	return nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
