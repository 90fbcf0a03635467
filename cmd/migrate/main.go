package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"point-ledger/config"
	pgStorage "point-ledger/internal/adapter/storage/postgres"
	"point-ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("PLG_CONFIG"), "path to config file")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		fmt.Println("Error: migration command is required")
		fmt.Println("Usage: migrate [-config path] <command>")
		fmt.Println("Commands: up, down, status, redo, version")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	command := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log.Info().Str("command", command).Str("database", cfg.Database.DBName).Msg("Starting migration")
	if err := pgStorage.Migrate(ctx, cfg.Database.DSN(), command); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	log.Info().Str("command", command).Msg("Migration finished")
}
