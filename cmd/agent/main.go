package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chicogong/escheduler/pkg/agent"
	"github.com/chicogong/escheduler/pkg/config"
	"github.com/chicogong/escheduler/pkg/logger"
	"github.com/chicogong/escheduler/pkg/models"
	"github.com/chicogong/escheduler/pkg/sensors"
	"github.com/chicogong/escheduler/pkg/sensors/nvmlgpu"
	"github.com/chicogong/escheduler/pkg/sensors/procfs"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// compositeSource reads host metrics from one Source and, when present,
// GPU metrics from a second, so the poller always has exactly one
// sensors.Source to talk to regardless of whether NVML is available.
type compositeSource struct {
	host sensors.Source
	gpu  sensors.Source
}

func (c compositeSource) ReadSystemMetrics() (sensors.SystemSnapshot, error) {
	return c.host.ReadSystemMetrics()
}

func (c compositeSource) ReadGPUs() ([]sensors.GpuSnapshot, error) {
	if c.gpu == nil {
		return nil, sensors.ErrUnsupported{Capability: "gpu"}
	}
	return c.gpu.ReadGPUs()
}

func (c compositeSource) ReadPower() (models.PowerReading, error) {
	if c.gpu == nil {
		return c.host.ReadPower()
	}
	return c.gpu.ReadPower()
}

func (c compositeSource) AvailableFrequencies(coreID int) []int {
	return c.host.AvailableFrequencies(coreID)
}

func (c compositeSource) SetFrequency(coreID, mhz int) error {
	return c.host.SetFrequency(coreID, mhz)
}

func (c compositeSource) SetAffinity(pid int, cores []int) error {
	return c.host.SetAffinity(pid, cores)
}

func main() {
	var (
		configFile  = flag.String("config", "configs/agent.yaml", "Path to config file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Energy Scheduler Agent\n")
		fmt.Printf("  Version:    %s\n", Version)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadAgentConfig(*configFile)
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

	log.Info("starting energy scheduler agent",
		logger.String("version", Version),
		logger.String("agent_id", cfg.Agent.ID),
	)

	host := procfs.New()

	var gpu sensors.Source
	if cfg.GPU.DetectionMethod == "nvml" {
		nv, err := nvmlgpu.New()
		if err != nil {
			log.Warn("NVML unavailable, continuing without GPU telemetry", logger.Error(err))
		} else {
			gpu = nv
			defer func() { _ = nv.Close() }()
		}
	}

	source := compositeSource{host: host, gpu: gpu}

	poller := agent.New(agent.Config{
		ID:            cfg.Agent.ID,
		SchedulerAddr: cfg.Scheduler.Address,
	}, source, log.Named("poller"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(cfg.Agent.PollInterval) * time.Second
	go poller.Run(ctx, interval)

	log.Info("energy scheduler agent started successfully",
		logger.String("scheduler_address", cfg.Scheduler.Address),
		logger.Int64("poll_interval_seconds", int64(cfg.Agent.PollInterval)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down energy scheduler agent...")
	cancel()

	log.Info("energy scheduler agent stopped")
}
