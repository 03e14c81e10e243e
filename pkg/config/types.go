// Package config loads and validates the engine configuration from YAML
// files plus environment variables. The loading pipeline mirrors the usual
// steps: read files, expand env references, merge user values over defaults,
// validate, build the runtime Config.
package config

import (
	"fmt"
	"time"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
	Deploy DeployConfig `yaml:"deploy"`

	// Limits is resolved from Engine.TestMode after loading; it is not read
	// from YAML.
	Limits Limits `yaml:"-"`
}

// EngineConfig groups investigation-engine settings.
type EngineConfig struct {
	// TestMode tightens every ceiling (see Limits).
	TestMode bool `yaml:"test_mode"`

	LLM       LLMConfig       `yaml:"llm"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Journal   JournalConfig   `yaml:"journal"`
	Queue     QueueConfig     `yaml:"queue"`
}

// LLMConfig selects and tunes the LLM provider.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "anthropic" or "mock"
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	// APIKeyEnv names the environment variable holding the provider key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// WarehouseConfig describes the transactions table the mandatory query runs
// against.
type WarehouseConfig struct {
	TransactionsTable string `yaml:"transactions_table"`
	ResultLimit       int    `yaml:"result_limit"`

	// DSNEnv names the environment variable holding the warehouse DSN. When
	// the variable is unset the engine runs with an empty-result stub.
	DSNEnv string `yaml:"dsn_env"`
}

// JournalConfig controls the optional Postgres investigation journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// DSNEnv names the environment variable holding the Postgres DSN.
	DSNEnv string `yaml:"dsn_env"`
}

// QueueConfig sizes the investigation worker pool.
type QueueConfig struct {
	WorkerCount int `yaml:"worker_count"`
	QueueDepth  int `yaml:"queue_depth"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DeployConfig configures the deployment phase coordinator.
type DeployConfig struct {
	Environment string          `yaml:"environment"`
	StateDir    string          `yaml:"state_dir"`
	Services    []ServiceConfig `yaml:"services"`

	PhaseTimeout time.Duration `yaml:"phase_timeout"`
	Health       HealthConfig  `yaml:"health"`

	// JournalEvery amortises state writes: the journal file is rewritten
	// after this many appended log entries (and always at terminal states).
	JournalEvery int `yaml:"journal_every"`
}

// Service looks up a declared service by name.
func (d *DeployConfig) Service(name string) (ServiceConfig, bool) {
	for _, svc := range d.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceConfig{}, false
}

// ServiceConfig declares one deployable service and its dependencies.
type ServiceConfig struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on"`
	HealthURL string   `yaml:"health_url"`

	// DeployCmd and RollbackCmd are the argv the exec deployer runs for this
	// service.
	DeployCmd   []string `yaml:"deploy_cmd"`
	RollbackCmd []string `yaml:"rollback_cmd"`
}

// HealthConfig tunes the per-phase health gate.
type HealthConfig struct {
	Retries      int           `yaml:"retries"`
	Interval     time.Duration `yaml:"interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// defaults returns the built-in configuration that user YAML merges over.
func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			LLM: LLMConfig{
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 4096,
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
			Warehouse: WarehouseConfig{
				TransactionsTable: "TRANSACTIONS_ENRICHED",
				ResultLimit:       500,
				DSNEnv:            "INQUEST_WAREHOUSE_DSN",
			},
			Journal: JournalConfig{
				DSNEnv: "INQUEST_DB_DSN",
			},
			Queue: QueueConfig{
				WorkerCount: 4,
				QueueDepth:  64,
			},
		},
		Server: ServerConfig{Port: 8080},
		Deploy: DeployConfig{
			Environment:  "staging",
			StateDir:     "./deploy-state",
			PhaseTimeout: 10 * time.Minute,
			Health: HealthConfig{
				Retries:      10,
				Interval:     3 * time.Second,
				ProbeTimeout: 5 * time.Second,
			},
			JournalEvery: 10,
		},
	}
}

// Validate checks the resolved configuration for values the engine cannot
// run with.
func (c *Config) Validate() error {
	if c.Engine.LLM.Provider == "" {
		return fmt.Errorf("engine.llm.provider is required")
	}
	if c.Engine.LLM.Provider != "anthropic" && c.Engine.LLM.Provider != "mock" {
		return fmt.Errorf("engine.llm.provider %q is not supported", c.Engine.LLM.Provider)
	}
	if c.Engine.LLM.MaxTokens <= 0 {
		return fmt.Errorf("engine.llm.max_tokens must be positive, got %d", c.Engine.LLM.MaxTokens)
	}
	if c.Engine.Warehouse.TransactionsTable == "" {
		return fmt.Errorf("engine.warehouse.transactions_table is required")
	}
	if c.Engine.Warehouse.ResultLimit <= 0 {
		return fmt.Errorf("engine.warehouse.result_limit must be positive, got %d", c.Engine.Warehouse.ResultLimit)
	}
	if c.Engine.Queue.WorkerCount <= 0 {
		return fmt.Errorf("engine.queue.worker_count must be positive, got %d", c.Engine.Queue.WorkerCount)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	seen := make(map[string]bool, len(c.Deploy.Services))
	for _, svc := range c.Deploy.Services {
		if svc.Name == "" {
			return fmt.Errorf("deploy.services entry with empty name")
		}
		if seen[svc.Name] {
			return fmt.Errorf("deploy.services has duplicate service %q", svc.Name)
		}
		seen[svc.Name] = true
	}
	for _, svc := range c.Deploy.Services {
		for _, dep := range svc.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("deploy.services: %q depends on unknown service %q", svc.Name, dep)
			}
		}
	}
	return nil
}
