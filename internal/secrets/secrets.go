// Package secrets resolves credentials from an ordered chain of backends.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Key identifies a credential.
type Key string

const (
	KeyGraphPassword  Key = "graph_password"
	KeyRedisPassword  Key = "redis_password"
	KeyAMQPURL        Key = "amqp_url"
	KeyTemporalAPIKey Key = "temporal_api_key"
)

// ErrNotFound is returned when no provider has the key.
var ErrNotFound = errors.New("secret not found")

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key Key) (string, error)
	Name() string
}

// Config configures the chain. Provider picks the primary backend ("env",
// "file" or "vault"); environment variables are always the fallback.
type Config struct {
	Provider  string      `mapstructure:"provider"`
	EnvPrefix string      `mapstructure:"env_prefix"`
	File      FileConfig  `mapstructure:"file"`
	Vault     VaultConfig `mapstructure:"vault"`
}

// DefaultConfig returns an env-only configuration.
func DefaultConfig() *Config {
	return &Config{Provider: "env", EnvPrefix: "VENDORTWIN_"}
}

// Chain tries providers in order. The first non-empty value wins and is
// cached.
type Chain struct {
	providers []Provider

	mu    sync.RWMutex
	cache map[Key]string
}

// NewChain builds the chain for cfg.
func NewChain(cfg *Config) (*Chain, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	env := NewEnvProvider(cfg.EnvPrefix)

	var providers []Provider
	switch cfg.Provider {
	case "vault":
		p, err := NewVaultProvider(&cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("create vault provider: %w", err)
		}
		providers = append(providers, p, env)
	case "file":
		p, err := NewFileProvider(&cfg.File)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		providers = append(providers, p, env)
	case "env", "":
		providers = append(providers, env)
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}
	return NewChainOf(providers...), nil
}

// NewChainOf builds a chain from explicit providers.
func NewChainOf(providers ...Provider) *Chain {
	return &Chain{providers: providers, cache: make(map[Key]string)}
}

// Get returns the first non-empty value for key. ErrNotFound means every
// backend answered and none had it.
func (c *Chain) Get(ctx context.Context, key Key) (string, error) {
	c.mu.RLock()
	val, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return val, nil
	}

	var errs []error
	for _, p := range c.providers {
		val, err := p.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
			continue
		}
		if val == "" {
			continue
		}
		c.mu.Lock()
		c.cache[key] = val
		c.mu.Unlock()
		return val, nil
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("resolve %s: %w", key, errors.Join(errs...))
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Resolve returns configured when it is set, otherwise the chain's value
// for key, otherwise "". Backend failures are returned.
func (c *Chain) Resolve(ctx context.Context, configured string, key Key) (string, error) {
	if configured != "" {
		return configured, nil
	}
	val, err := c.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return val, err
}

// ClearCache drops cached values, e.g. after a rotation.
func (c *Chain) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[Key]string)
	c.mu.Unlock()
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment-based provider.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "VENDORTWIN_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

// Get looks up PREFIX_KEY, then KEY.
func (p *EnvProvider) Get(_ context.Context, key Key) (string, error) {
	name := strings.ToUpper(string(key))
	if val := os.Getenv(p.prefix + name); val != "" {
		return val, nil
	}
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: env %s%s", ErrNotFound, p.prefix, name)
}
