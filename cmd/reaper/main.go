package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/semla/internal/app"
	"github.com/shrimpsizemoose/semla/internal/storage"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	var once = flag.Bool("once", false, "Run a single pass and exit")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	grace := time.Duration(service.Config.Reaper.GraceMinutes) * time.Minute
	reaper := storage.NewReaper(service.Store, service.Blobs, grace)

	if *once {
		if err := reaper.Run(context.Background()); err != nil {
			logger.Error.Fatalf("Reaper pass failed: %v", err)
		}
		return
	}

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Cron(service.Config.Reaper.Schedule).Do(func() {
		if err := reaper.Run(context.Background()); err != nil {
			logger.Error.Printf("Reaper pass failed: %v", err)
		}
	}); err != nil {
		logger.Error.Fatalf("Failed to schedule reaper: %v", err)
	}

	scheduler.StartAsync()
	logger.Info.Printf("Reaper scheduled with cron %q", service.Config.Reaper.Schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	scheduler.Stop()
	logger.Info.Println("Reaper stopped")
}
