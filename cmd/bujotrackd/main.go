package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minhvu/bujotrack/internal/app"
	"github.com/minhvu/bujotrack/internal/model"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config.yaml")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	engine, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	if engine.Sync != nil {
		engine.Sync.Start()
		log.Printf("Sync loop started (every %ds)", cfg.Sync.IntervalSec)
	} else {
		log.Printf("Remote sync disabled; running local-only")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := engine.SaveSnapshots(shutdownCtx); err != nil {
		log.Printf("Snapshot on shutdown failed: %v", err)
	}
	if err := engine.Close(); err != nil {
		log.Printf("Close failed: %v", err)
	}
}
