package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chicogong/escheduler/pkg/api"
	"github.com/chicogong/escheduler/pkg/config"
	"github.com/chicogong/escheduler/pkg/logger"
	"github.com/chicogong/escheduler/pkg/metricsexport"
	"github.com/chicogong/escheduler/pkg/scheduler"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "configs/scheduler.yaml", "Path to config file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Energy Scheduler\n")
		fmt.Printf("  Version:    %s\n", Version)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadSchedulerConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Close() }()

	log.Info("starting energy scheduler",
		logger.String("version", Version),
		logger.String("config", *configFile),
	)

	stateManager := scheduler.NewStateManager("data/scheduler")
	if err := stateManager.LoadSnapshot(); err != nil {
		log.Warn("failed to load snapshot, starting with empty state", logger.Error(err))
	}
	stateManager.StartPeriodicSnapshot(30 * time.Second)

	engine := scheduler.NewEngine(stateManager, log.Named("engine"))
	engine.Start(5 * time.Second)

	exporter := metricsexport.New()

	restServer := api.NewRESTServer(stateManager, engine, log.Named("api"), exporter)
	if err := restServer.Start(cfg.Server.HTTPAddress); err != nil {
		log.Fatal("failed to start REST API server", logger.Error(err))
	}

	log.Info("energy scheduler started successfully",
		logger.String("http_address", cfg.Server.HTTPAddress),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down energy scheduler...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine.Stop()
	if err := restServer.Stop(); err != nil {
		log.Warn("error stopping REST API server", logger.Error(err))
	}
	stateManager.Stop()

	<-ctx.Done()

	log.Info("energy scheduler stopped")
}
