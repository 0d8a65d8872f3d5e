package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Graph      GraphConfig      `mapstructure:"graph"`
	Data       DataConfig       `mapstructure:"data"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Events     EventsConfig     `mapstructure:"events"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Log        LogConfig        `mapstructure:"log"`
}

// GraphConfig selects and configures the graph store. Backend "memory" runs
// without a database.
type GraphConfig struct {
	Backend      string        `mapstructure:"backend"`
	URI          string        `mapstructure:"uri"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Database     string        `mapstructure:"database"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// DataConfig locates the input documents, local paths or gs:// URIs.
type DataConfig struct {
	Dependencies    string `mapstructure:"dependencies"`
	Compliance      string `mapstructure:"compliance"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type WeightsConfig struct {
	Operational float64 `mapstructure:"operational"`
	Financial   float64 `mapstructure:"financial"`
	Compliance  float64 `mapstructure:"compliance"`
}

// SimulationConfig holds the impact model constants.
type SimulationConfig struct {
	DefaultDuration        float64       `mapstructure:"default_duration"`
	Weights                WeightsConfig `mapstructure:"weights"`
	RevenuePerHour         float64       `mapstructure:"revenue_per_hour"`
	TransactionsPerHour    float64       `mapstructure:"transactions_per_hour"`
	RevenueSharePerService float64       `mapstructure:"revenue_share_per_service"`
	CostPerCustomer        float64       `mapstructure:"cost_per_customer"`
	ServiceScale           float64       `mapstructure:"service_scale"`
	FinancialScale         float64       `mapstructure:"financial_scale"`
	FinancialThreshold     float64       `mapstructure:"financial_threshold"`
	ComplianceThreshold    float64       `mapstructure:"compliance_threshold"`
}

type ComplianceConfig struct {
	DefaultWeight   float64 `mapstructure:"default_weight"`
	DefaultBaseline float64 `mapstructure:"default_baseline"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// RedisConfig configures the simulation result cache.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// EventsConfig selects the event transport: "log", "amqp" or "none".
type EventsConfig struct {
	Backend  string        `mapstructure:"backend"`
	AMQPURL  string        `mapstructure:"amqp_url"`
	Exchange string        `mapstructure:"exchange"`
	Buffer   int           `mapstructure:"buffer"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SecretsConfig struct {
	Provider        string        `mapstructure:"provider"`
	EnvPrefix       string        `mapstructure:"env_prefix"`
	FilePath        string        `mapstructure:"file_path"`
	VaultAddress    string        `mapstructure:"vault_address"`
	VaultToken      string        `mapstructure:"vault_token"`
	VaultMountPath  string        `mapstructure:"vault_mount_path"`
	VaultSecretPath string        `mapstructure:"vault_secret_path"`
	VaultTimeout    time.Duration `mapstructure:"vault_timeout"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	OutputPath string `mapstructure:"output_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// setDefaults registers every key so environment overrides reach Unmarshal
// even when the file omits the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("graph.backend", "neo4j")
	v.SetDefault("graph.uri", "bolt://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "")
	v.SetDefault("graph.query_timeout", 30*time.Second)

	v.SetDefault("data.dependencies", "data/dependencies.json")
	v.SetDefault("data.compliance", "data/compliance.json")
	v.SetDefault("data.credentials_file", "")

	v.SetDefault("simulation.default_duration", 4.0)
	v.SetDefault("simulation.weights.operational", 0.40)
	v.SetDefault("simulation.weights.financial", 0.35)
	v.SetDefault("simulation.weights.compliance", 0.25)
	v.SetDefault("simulation.revenue_per_hour", 10000.0)
	v.SetDefault("simulation.transactions_per_hour", 1000.0)
	v.SetDefault("simulation.revenue_share_per_service", 0.25)
	v.SetDefault("simulation.cost_per_customer", 5.0)
	v.SetDefault("simulation.service_scale", 10.0)
	v.SetDefault("simulation.financial_scale", 1_000_000.0)
	v.SetDefault("simulation.financial_threshold", 100_000.0)
	v.SetDefault("simulation.compliance_threshold", 0.10)

	v.SetDefault("compliance.default_weight", 0.05)
	v.SetDefault("compliance.default_baseline", 0.90)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "vendortwin:simulation")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("events.backend", "log")
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "vendortwin.events")
	v.SetDefault("events.buffer", 64)
	v.SetDefault("events.timeout", 5*time.Second)

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "vendortwin")

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.env_prefix", "VENDORTWIN_")
	v.SetDefault("secrets.file_path", "")
	v.SetDefault("secrets.vault_address", "")
	v.SetDefault("secrets.vault_token", "")
	v.SetDefault("secrets.vault_mount_path", "secret")
	v.SetDefault("secrets.vault_secret_path", "vendortwin")
	v.SetDefault("secrets.vault_timeout", 10*time.Second)

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.output_path", "stderr")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	w := c.Simulation.Weights
	if sum := w.Operational + w.Financial + w.Compliance; sum != 0 && math.Abs(sum-1) > 1e-6 {
		warnings = append(warnings, fmt.Sprintf("simulation weights sum to %.3f, not 1.0", sum))
	}
	for name, val := range map[string]float64{
		"revenue_per_hour":          c.Simulation.RevenuePerHour,
		"transactions_per_hour":     c.Simulation.TransactionsPerHour,
		"revenue_share_per_service": c.Simulation.RevenueSharePerService,
		"cost_per_customer":         c.Simulation.CostPerCustomer,
		"service_scale":             c.Simulation.ServiceScale,
		"financial_scale":           c.Simulation.FinancialScale,
	} {
		if val < 0 {
			warnings = append(warnings, fmt.Sprintf("simulation %s %.2f is negative", name, val))
		}
	}
	if c.Simulation.DefaultDuration < 0 {
		warnings = append(warnings, fmt.Sprintf("simulation default_duration %.2f is negative", c.Simulation.DefaultDuration))
	}

	if c.Graph.Backend == "neo4j" && c.Graph.URI == "" {
		warnings = append(warnings, "graph backend 'neo4j' is configured but uri is empty")
	}
	if c.Events.Backend == "amqp" && c.Events.AMQPURL == "" {
		warnings = append(warnings, "events backend 'amqp' is configured but amqp_url is empty; it may come from secrets")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		warnings = append(warnings, "redis is enabled but addr is empty")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		warnings = append(warnings, fmt.Sprintf("log level '%s' is not one of debug, info, warn, error", c.Log.Level))
	}

	return warnings
}

// Load reads configuration from an optional file, a .env file in the
// working directory and VENDORTWIN_* environment variables, in increasing
// precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VENDORTWIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
