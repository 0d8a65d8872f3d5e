// Package app assembles the runtime shared by the CLI, the HTTP server and
// the Temporal worker from one configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/vendortwin/internal/compliance"
	"github.com/efebarandurmaz/vendortwin/internal/config"
	"github.com/efebarandurmaz/vendortwin/internal/dashboard"
	"github.com/efebarandurmaz/vendortwin/internal/depgraph"
	"github.com/efebarandurmaz/vendortwin/internal/events"
	"github.com/efebarandurmaz/vendortwin/internal/graph"
	"github.com/efebarandurmaz/vendortwin/internal/graph/memgraph"
	neo4jstore "github.com/efebarandurmaz/vendortwin/internal/graph/neo4j"
	"github.com/efebarandurmaz/vendortwin/internal/loader"
	"github.com/efebarandurmaz/vendortwin/internal/maintenance"
	"github.com/efebarandurmaz/vendortwin/internal/observability"
	"github.com/efebarandurmaz/vendortwin/internal/results"
	"github.com/efebarandurmaz/vendortwin/internal/secrets"
	"github.com/efebarandurmaz/vendortwin/internal/server"
	"github.com/efebarandurmaz/vendortwin/internal/simulation"
	"github.com/efebarandurmaz/vendortwin/internal/source"
	"github.com/efebarandurmaz/vendortwin/internal/temporal"
)

// Options tunes what New builds.
type Options struct {
	Version string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Results connects the Redis result cache when redis.enabled is set.
	// One-shot commands leave it off.
	Results bool
	// Feed keeps the live dashboard feed of recent simulations.
	Feed bool
}

// App holds every long-lived collaborator. Close releases them in shutdown
// hook order.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Secrets    *secrets.Chain
	Store      graph.Store
	Compliance *compliance.Resolver
	Publisher  events.Publisher
	Results    *results.RedisStore
	Feed       *dashboard.Feed
	Metrics    *observability.Metrics
	Audit      *observability.AuditLogger
	Tracing    *observability.TracerProvider
	Simulator  *simulation.Engine
	// WriteLock keeps loads and maintenance from writing at the same time.
	WriteLock *sync.Mutex

	mu    sync.Mutex
	hooks []server.ShutdownHook
}

// New connects every backend named by cfg. On failure whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
		WriteLock: &sync.Mutex{},
	}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	var err error
	if a.Secrets, err = SecretsChain(cfg.Secrets); err != nil {
		return nil, err
	}

	a.Tracing, err = observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "vendortwin",
		ServiceVersion: opts.Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.AddHook(server.TracingShutdownHook(a.Tracing.Shutdown))

	a.Audit, err = observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    cfg.Audit.Enabled,
		OutputPath: cfg.Audit.OutputPath,
	})
	if err != nil {
		return nil, err
	}
	a.AddHook(server.AuditLoggerShutdownHook(a.Audit.Close))

	if a.Store, err = a.openStore(ctx); err != nil {
		return nil, err
	}
	a.AddHook(server.GraphShutdownHook(a.Store.Close))

	a.Compliance = a.loadCompliance(ctx)

	if opts.Results && cfg.Redis.Enabled {
		password, err := a.Secrets.Resolve(ctx, cfg.Redis.Password, secrets.KeyRedisPassword)
		if err != nil {
			return nil, err
		}
		a.Results, err = results.NewRedisStore(ctx, results.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		})
		if err != nil {
			return nil, err
		}
		a.AddHook(server.CacheShutdownHook(a.Results.Close))
	}

	if opts.Feed {
		a.Feed = dashboard.New(dashboard.Config{Logger: a.Logger})
	}
	if a.Publisher, err = a.openPublisher(ctx); err != nil {
		return nil, err
	}
	a.AddHook(server.EventsShutdownHook(a.Publisher.Close))

	s := cfg.Simulation
	a.Simulator = simulation.New(a.Store, a.Compliance, simulation.Options{
		Weights: &simulation.Weights{
			Operational: s.Weights.Operational,
			Financial:   s.Weights.Financial,
			Compliance:  s.Weights.Compliance,
		},
		Params: &simulation.Params{
			RevenuePerHour:         s.RevenuePerHour,
			TransactionsPerHour:    s.TransactionsPerHour,
			RevenueSharePerService: s.RevenueSharePerService,
			CostPerCustomer:        s.CostPerCustomer,
			ServiceScale:           s.ServiceScale,
			FinancialScale:         s.FinancialScale,
		},
		Thresholds: &simulation.Thresholds{
			FinancialCost:   s.FinancialThreshold,
			ComplianceScore: s.ComplianceThreshold,
		},
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Audit:     a.Audit,
		Logger:    logger,
	})
	ok = true
	return a, nil
}

// SecretsChain builds the credential chain described by cfg.
func SecretsChain(cfg config.SecretsConfig) (*secrets.Chain, error) {
	return secrets.NewChain(&secrets.Config{
		Provider:  cfg.Provider,
		EnvPrefix: cfg.EnvPrefix,
		File:      secrets.FileConfig{Path: cfg.FilePath},
		Vault: secrets.VaultConfig{
			Address:    cfg.VaultAddress,
			Token:      cfg.VaultToken,
			MountPath:  cfg.VaultMountPath,
			SecretPath: cfg.VaultSecretPath,
			Timeout:    cfg.VaultTimeout,
		},
	})
}

// TemporalClient dials Temporal with the API key from the secrets chain,
// if any. It needs no graph connection.
func TemporalClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (client.Client, error) {
	chain, err := SecretsChain(cfg.Secrets)
	if err != nil {
		return nil, err
	}
	apiKey, err := chain.Resolve(ctx, "", secrets.KeyTemporalAPIKey)
	if err != nil {
		return nil, err
	}
	return temporal.Dial(temporal.ClientConfig{
		Host:      cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		APIKey:    apiKey,
		Logger:    logger,
	})
}

func (a *App) openStore(ctx context.Context) (graph.Store, error) {
	cfg := a.Config.Graph
	switch cfg.Backend {
	case "memory":
		a.Logger.Warn("using in-memory graph store; data is lost on exit")
		return memgraph.New(), nil
	case "neo4j", "":
		password, err := a.Secrets.Resolve(ctx, cfg.Password, secrets.KeyGraphPassword)
		if err != nil {
			return nil, err
		}
		return neo4jstore.New(ctx, neo4jstore.Config{
			URI:          cfg.URI,
			Username:     cfg.Username,
			Password:     password,
			Database:     cfg.Database,
			QueryTimeout: cfg.QueryTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown graph backend: %s", cfg.Backend)
	}
}

// loadCompliance falls back to an empty dataset so simulations still run;
// the health check reports the gap.
func (a *App) loadCompliance(ctx context.Context) *compliance.Resolver {
	opts := compliance.Options{
		DefaultWeight:   a.Config.Compliance.DefaultWeight,
		DefaultBaseline: a.Config.Compliance.DefaultBaseline,
	}
	location := a.Config.Data.Compliance
	if location != "" {
		r, err := compliance.Load(ctx, location, a.SourceOptions(), opts)
		if err == nil {
			return r
		}
		a.Logger.Warn("compliance dataset unavailable", "location", location, "error", err)
	}
	return compliance.New(&depgraph.ComplianceDocument{}, opts)
}

func (a *App) openPublisher(ctx context.Context) (events.Publisher, error) {
	cfg := a.Config.Events
	var transport events.Publisher
	switch cfg.Backend {
	case "amqp":
		url, err := a.Secrets.Resolve(ctx, cfg.AMQPURL, secrets.KeyAMQPURL)
		if err != nil {
			return nil, err
		}
		if url == "" {
			return nil, errors.New("events backend amqp needs events.amqp_url or the amqp_url secret")
		}
		p, err := events.DialAMQP(events.AMQPConfig{URL: url, Exchange: cfg.Exchange})
		if err != nil {
			return nil, err
		}
		transport = events.NewAsync(p, events.AsyncOptions{
			Buffer:  cfg.Buffer,
			Timeout: cfg.Timeout,
			Logger:  a.Logger,
			Metrics: a.Metrics,
		})
	case "log", "":
		transport = events.LogPublisher{Logger: a.Logger}
	case "none":
		transport = events.Nop{}
	default:
		return nil, fmt.Errorf("unknown events backend: %s", cfg.Backend)
	}

	var chain events.Multi
	// The cache is written synchronously so GET /simulate/:id sees a result
	// as soon as POST /simulate returns.
	if a.Results != nil {
		chain = append(chain, results.Recorder{Store: a.Results})
	}
	if a.Feed != nil {
		chain = append(chain, a.Feed)
	}
	if len(chain) == 0 {
		return transport, nil
	}
	return append(chain, transport), nil
}

// SourceOptions returns the document access settings.
func (a *App) SourceOptions() source.Options {
	return source.Options{CredentialsFile: a.Config.Data.CredentialsFile}
}

// Loader returns a loader sharing the app's write lock. src names the
// document in events and audit records.
func (a *App) Loader(src string) *loader.Loader {
	return loader.New(a.Store, loader.Options{
		Logger:    a.Logger,
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Audit:     a.Audit,
		WriteLock: a.WriteLock,
		Source:    src,
	})
}

// MaintenanceOptions returns maintenance options sharing the write lock.
func (a *App) MaintenanceOptions(dryRun bool) maintenance.Options {
	return maintenance.Options{
		DryRun:    dryRun,
		Logger:    a.Logger,
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Audit:     a.Audit,
		WriteLock: a.WriteLock,
	}
}

// Health builds the health server with a check per backend.
func (a *App) Health(version string) *server.HealthServer {
	h := server.NewHealthServer(version)
	h.RegisterCheck("graph", server.GraphHealthChecker(a.Store.Ping))
	h.RegisterCheck("compliance", server.ComplianceHealthChecker(a.Compliance.VendorCount))
	if a.Results != nil {
		h.RegisterCheck("cache", server.CacheHealthChecker(a.Results.Ping))
	}
	return h
}

// AddHook registers a release step run by Close or a shutdown handler.
func (a *App) AddHook(hook server.ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook)
}

// Hooks returns the registered release steps.
func (a *App) Hooks() []server.ShutdownHook {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]server.ShutdownHook(nil), a.hooks...)
}

// Close runs every hook in priority order and joins their errors. It is
// meant for one-shot commands; long-running processes hand Hooks to a
// server.ShutdownHandler instead.
func (a *App) Close(ctx context.Context) error {
	hooks := a.Hooks()
	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Priority < hooks[j].Priority })
	var errs []error
	for _, h := range hooks {
		if err := h.Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
		}
	}
	return errors.Join(errs...)
}
