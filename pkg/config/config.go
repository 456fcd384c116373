// Package config loads the scheduler and agent daemon configurations
// from YAML files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchedulerConfig is the top-level configuration for cmd/scheduler.
type SchedulerConfig struct {
	Server struct {
		HTTPAddress string `yaml:"http_address"`
	} `yaml:"server"`

	Planner struct {
		Objective string  `yaml:"objective"` // "makespan", "energy", or "weighted"
		Alpha     float64 `yaml:"alpha"`     // used when objective is "weighted"
	} `yaml:"planner"`

	Policy struct {
		DefaultEnergyBudgetJ float64 `yaml:"default_energy_budget_joules"`
		DefaultDeadlineSec   float64 `yaml:"default_deadline_seconds"`
		DrainAttemptLimit    int     `yaml:"drain_attempt_limit"`
		FixedWatts           float64 `yaml:"fixed_watts"`
	} `yaml:"policy"`

	Runtime struct {
		Workers        int `yaml:"workers"`
		StealThreshold int `yaml:"steal_threshold"`
	} `yaml:"runtime"`

	DVFS struct {
		FrequencyLadderMHz []int `yaml:"frequency_ladder_mhz"`
	} `yaml:"dvfs"`

	Comm struct {
		DefaultBandwidthMBs float64 `yaml:"default_bandwidth_mbs"`
		DefaultLatencyMs    float64 `yaml:"default_latency_ms"`
	} `yaml:"comm"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
}

// AgentConfig is the top-level configuration for cmd/agent.
type AgentConfig struct {
	Agent struct {
		ID           string `yaml:"id"`
		PollInterval int    `yaml:"poll_interval_seconds"`
	} `yaml:"agent"`

	Scheduler struct {
		Address string `yaml:"address"`
	} `yaml:"scheduler"`

	GPU struct {
		DetectionMethod string `yaml:"detection_method"` // "nvml" or "none"
	} `yaml:"gpu"`

	Permissions struct {
		AllowFrequencyWrite bool `yaml:"allow_frequency_write"`
		AllowAffinityWrite  bool `yaml:"allow_affinity_write"`
	} `yaml:"permissions"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
}

// LoadSchedulerConfig loads scheduler configuration from path.
func LoadSchedulerConfig(path string) (*SchedulerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg SchedulerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applySchedulerDefaults(&cfg)

	if err := validateSchedulerConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadAgentConfig loads agent configuration from path.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Agent.ID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Agent.ID = hostname
	}
	if cfg.Agent.PollInterval == 0 {
		cfg.Agent.PollInterval = 5
	}

	if err := validateAgentConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.Planner.Objective == "" {
		cfg.Planner.Objective = "makespan"
	}
	if cfg.Runtime.Workers == 0 {
		cfg.Runtime.Workers = 1
	}
	if cfg.Runtime.StealThreshold == 0 {
		cfg.Runtime.StealThreshold = 5
	}
	if cfg.Policy.DrainAttemptLimit == 0 {
		cfg.Policy.DrainAttemptLimit = 20
	}
	if cfg.Comm.DefaultBandwidthMBs == 0 {
		cfg.Comm.DefaultBandwidthMBs = 1000
	}
}

func validateSchedulerConfig(cfg *SchedulerConfig) error {
	if cfg.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	switch cfg.Planner.Objective {
	case "makespan", "energy", "weighted":
	default:
		return fmt.Errorf("planner.objective must be 'makespan', 'energy', or 'weighted'")
	}
	if cfg.Planner.Objective == "weighted" && (cfg.Planner.Alpha < 0 || cfg.Planner.Alpha > 1) {
		return fmt.Errorf("planner.alpha must be between 0 and 1")
	}
	if cfg.Runtime.Workers < 1 {
		return fmt.Errorf("runtime.workers must be at least 1")
	}
	return nil
}

func validateAgentConfig(cfg *AgentConfig) error {
	if cfg.Agent.ID == "" {
		return fmt.Errorf("agent.id is required")
	}
	if cfg.Scheduler.Address == "" {
		return fmt.Errorf("scheduler.address is required")
	}
	if cfg.GPU.DetectionMethod != "nvml" && cfg.GPU.DetectionMethod != "none" {
		return fmt.Errorf("gpu.detection_method must be 'nvml' or 'none'")
	}
	return nil
}
