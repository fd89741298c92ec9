package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// WorkflowConfig holds workflow policy configuration
type WorkflowConfig struct {
	// RequireUnanimousAccept lists phases where finalize(APPROVE) demands
	// every item decision be ACCEPT. Default: no phase requires unanimity.
	RequireUnanimousAccept []string `mapstructure:"require_unanimous_accept"`

	// ParallelPairs lists phase pairs allowed to run concurrently; each
	// member may start once its co-phase has started, bypassing the
	// ordinal gate.
	ParallelPairs []ParallelPair `mapstructure:"parallel_pairs"`

	// DefaultSLAHours is the assignment due-date window when a routing
	// rule does not override it.
	DefaultSLAHours int `mapstructure:"default_sla_hours"`

	// Routing overrides entries of the built-in routing table.
	Routing []RoutingRule `mapstructure:"routing"`

	// NotificationDrainInterval is how often the outbox emitter polls for
	// pending notification events.
	NotificationDrainInterval time.Duration `mapstructure:"notification_drain_interval"`
}

// ParallelPair names two phases eligible for parallel execution.
type ParallelPair struct {
	Phase   string `mapstructure:"phase"`
	CoPhase string `mapstructure:"co_phase"`
}

// RoutingRule is one configured routing table entry.
type RoutingRule struct {
	Phase          string `mapstructure:"phase"`
	Transition     string `mapstructure:"transition"`
	FromRole       string `mapstructure:"from_role"`
	ToRole         string `mapstructure:"to_role"`
	AssignmentType string `mapstructure:"assignment_type"`
	SLAHours       int    `mapstructure:"sla_hours"`
	Priority       string `mapstructure:"priority"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/workflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("workflow.default_sla_hours", 48)
	viper.SetDefault("workflow.notification_drain_interval", 15*time.Second)
	viper.SetDefault("workflow.parallel_pairs", []map[string]string{
		{"phase": string(entity.PhaseSampleSelection), "co_phase": string(entity.PhaseDataOwnerID)},
	})

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Workflow.DefaultSLAHours <= 0 {
		return fmt.Errorf("workflow default_sla_hours must be positive")
	}

	for _, name := range c.Workflow.RequireUnanimousAccept {
		if !entity.PhaseName(name).IsValid() {
			return fmt.Errorf("unknown phase in require_unanimous_accept: %q", name)
		}
	}
	for _, pair := range c.Workflow.ParallelPairs {
		if !entity.PhaseName(pair.Phase).IsValid() {
			return fmt.Errorf("unknown phase in parallel_pairs: %q", pair.Phase)
		}
		if !entity.PhaseName(pair.CoPhase).IsValid() {
			return fmt.Errorf("unknown co_phase in parallel_pairs: %q", pair.CoPhase)
		}
		if pair.Phase == pair.CoPhase {
			return fmt.Errorf("parallel pair references itself: %q", pair.Phase)
		}
	}

	return nil
}

// UnanimousPhases returns the set of phases requiring unanimous ACCEPT.
func (c *Config) UnanimousPhases() map[entity.PhaseName]bool {
	phases := make(map[entity.PhaseName]bool, len(c.Workflow.RequireUnanimousAccept))
	for _, name := range c.Workflow.RequireUnanimousAccept {
		phases[entity.PhaseName(name)] = true
	}
	return phases
}

// ParallelPairMap returns the symmetric co-phase lookup.
func (c *Config) ParallelPairMap() map[entity.PhaseName]entity.PhaseName {
	pairs := make(map[entity.PhaseName]entity.PhaseName, len(c.Workflow.ParallelPairs)*2)
	for _, pair := range c.Workflow.ParallelPairs {
		pairs[entity.PhaseName(pair.Phase)] = entity.PhaseName(pair.CoPhase)
		pairs[entity.PhaseName(pair.CoPhase)] = entity.PhaseName(pair.Phase)
	}
	return pairs
}
