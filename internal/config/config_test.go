package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestValidate_Empty(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	if len(warnings) != 0 {
		t.Errorf("empty config should have no warnings, got %v", warnings)
	}
}

func TestValidate_Weights(t *testing.T) {
	tests := []struct {
		name    string
		weights WeightsConfig
		want    bool // true = should warn
	}{
		{"defaults", WeightsConfig{0.40, 0.35, 0.25}, false},
		{"operational_only", WeightsConfig{Operational: 1}, false},
		{"unset", WeightsConfig{}, false},
		{"too_high", WeightsConfig{0.5, 0.5, 0.5}, true},
		{"too_low", WeightsConfig{0.1, 0.1, 0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Simulation: SimulationConfig{Weights: tt.weights}}
			if got := hasWarning(cfg.Validate(), "weights"); got != tt.want {
				t.Errorf("weights=%+v: hasWarn=%v, want=%v", tt.weights, got, tt.want)
			}
		})
	}
}

func TestValidate_NegativeConstants(t *testing.T) {
	cfg := &Config{Simulation: SimulationConfig{RevenuePerHour: -1, DefaultDuration: -4}}
	warnings := cfg.Validate()
	if !hasWarning(warnings, "revenue_per_hour") {
		t.Error("expected warning about negative revenue_per_hour")
	}
	if !hasWarning(warnings, "default_duration") {
		t.Error("expected warning about negative default_duration")
	}
}

func TestValidate_Backends(t *testing.T) {
	cfg := &Config{
		Graph:  GraphConfig{Backend: "neo4j"},
		Events: EventsConfig{Backend: "amqp"},
		Redis:  RedisConfig{Enabled: true},
		Log:    LogConfig{Level: "verbose"},
	}
	warnings := cfg.Validate()
	for _, want := range []string{"uri is empty", "amqp_url is empty", "redis is enabled", "log level"} {
		if !hasWarning(warnings, want) {
			t.Errorf("expected warning containing %q, got %v", want, warnings)
		}
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Simulation.DefaultDuration != 4 {
		t.Errorf("expected default duration 4, got %v", cfg.Simulation.DefaultDuration)
	}
	if cfg.Simulation.Weights.Operational != 0.40 {
		t.Errorf("expected operational weight 0.40, got %v", cfg.Simulation.Weights.Operational)
	}
	if cfg.Compliance.DefaultBaseline != 0.90 {
		t.Errorf("expected baseline 0.90, got %v", cfg.Compliance.DefaultBaseline)
	}
	if cfg.Graph.QueryTimeout != 30*time.Second {
		t.Errorf("expected 30s query timeout, got %v", cfg.Graph.QueryTimeout)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendortwin.yaml")
	content := `
graph:
  uri: bolt://graph:7687
  query_timeout: 5s
simulation:
  revenue_per_hour: 25000
redis:
  enabled: true
  ttl: 1h
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VENDORTWIN_GRAPH_PASSWORD", "from-env")
	t.Setenv("VENDORTWIN_SIMULATION_REVENUE_PER_HOUR", "50000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Graph.URI != "bolt://graph:7687" {
		t.Errorf("expected uri from file, got %s", cfg.Graph.URI)
	}
	if cfg.Graph.QueryTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Graph.QueryTimeout)
	}
	if cfg.Graph.Password != "from-env" {
		t.Errorf("expected password from env, got %q", cfg.Graph.Password)
	}
	if cfg.Simulation.RevenuePerHour != 50000 {
		t.Errorf("expected env to override file, got %v", cfg.Simulation.RevenuePerHour)
	}
	if !cfg.Redis.Enabled || cfg.Redis.TTL != time.Hour {
		t.Errorf("expected redis enabled with 1h ttl, got %+v", cfg.Redis)
	}
	if cfg.Simulation.CostPerCustomer != 5 {
		t.Errorf("expected unset keys to keep defaults, got %v", cfg.Simulation.CostPerCustomer)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
