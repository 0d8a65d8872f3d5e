// Package results caches simulation results so they can be fetched by id.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
)

// ErrNotFound is returned for unknown or expired ids.
var ErrNotFound = errors.New("simulation result not found")

// Store saves and fetches results.
type Store interface {
	Save(ctx context.Context, r *simulation.Result) error
	Get(ctx context.Context, id string) (*simulation.Result, error)
}

// RedisConfig configures the Redis result cache.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// RedisStore keeps each result as a JSON string with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "vendortwin:simulation"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis result cache: %w", err)
	}
	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), ttl: cfg.TTL}, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// Save stores r under its simulation id.
func (s *RedisStore) Save(ctx context.Context, r *simulation.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", r.SimulationID, err)
	}
	if err := s.client.Set(ctx, s.key(r.SimulationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store result %s: %w", r.SimulationID, err)
	}
	return nil
}

// Get returns the result for id or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*simulation.Result, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch result %s: %w", id, err)
	}
	var r simulation.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return &r, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Recorder is an events.Publisher that saves completed simulations to a
// Store and ignores every other event type.
type Recorder struct {
	Store Store
}

func (r Recorder) Publish(ctx context.Context, e events.Event) error {
	if e.Type != events.TypeSimulationCompleted {
		return nil
	}
	res, ok := e.Payload.(*simulation.Result)
	if !ok {
		return fmt.Errorf("event %s: unexpected payload %T", e.ID, e.Payload)
	}
	return r.Store.Save(ctx, res)
}

func (Recorder) Close() error { return nil }
