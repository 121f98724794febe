package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"autoreply/internal/config"
	"autoreply/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Config file path (default ~/.config/autoreply/config.toml)")
	httpAddr := flag.String("http", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	// API keys may come from a local .env during development
	if err := godotenv.Load(); err == nil {
		log.Println("[Main] Loaded .env")
	}

	var (
		cfg *config.Manager
		err error
	)
	if *configPath != "" {
		cfg, err = config.NewManagerAt(*configPath)
	} else {
		cfg, err = config.NewManager()
	}
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if *httpAddr != "" || *dbPath != "" {
		settings := cfg.Get()
		if *httpAddr != "" {
			settings.Server.HTTPAddr = *httpAddr
		}
		if *dbPath != "" {
			settings.Server.DBPath = *dbPath
		}
		cfg.Override(settings)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Startup error: %v", err)
	}

	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
