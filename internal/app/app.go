// Package app assembles a chat controller and its collaborators from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"RagChat/internal/backend"
	"RagChat/internal/cache"
	"RagChat/internal/chat"
	"RagChat/internal/config"
	"RagChat/internal/mcp"
	"RagChat/internal/responder"
	"RagChat/internal/store"
	"RagChat/internal/telemetry"
)

// App owns every long-lived component of a chat session
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Controller *chat.Controller

	// ResponderName describes what answers messages, for display
	ResponderName string

	store    *store.ConversationStore
	cache    cache.Cache
	registry *mcp.ClientRegistry
	llm      *backend.Client
	closers  []func()
}

// Option configures New
type Option func(*options)

type options struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	responder responder.Responder
	now       func() time.Time
}

// WithLogger sets the logger handed to every component
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTelemetry sets the tracer and meter
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(o *options) {
		o.tracer = tracer
		o.meter = meter
	}
}

// WithResponder bypasses responder.kind and answers with r
func WithResponder(r responder.Responder) Option {
	return func(o *options) {
		o.responder = r
	}
}

// WithClock sets the time used to date the demo seed
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Bootstrap initializes file logging and telemetry as configured, then
// builds the app. Closing the app flushes both.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, logFile, err := telemetry.InitLogger(cfg.Logging.Dir, level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Dir:         cfg.Logging.Dir,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	a, err := New(ctx, cfg, WithLogger(logger), WithTelemetry(tracer, meter))
	if err != nil {
		shutdown()
		logFile.Close()
		return nil, err
	}
	a.closers = append(a.closers, shutdown, func() { logFile.Close() })
	return a, nil
}

// New builds the store, responder chain and controller described by cfg
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = tracenoop.NewTracerProvider().Tracer("ragchat")
	}
	if o.meter == nil {
		o.meter = metricnoop.NewMeterProvider().Meter("ragchat")
	}

	a := &App{Config: cfg, Logger: o.logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	if a.store, err = a.openStore(o); err != nil {
		return nil, err
	}

	r := o.responder
	if r == nil {
		if r, err = a.buildResponder(ctx, o); err != nil {
			return nil, err
		}
	} else {
		a.ResponderName = "custom"
	}

	if cfg.Cache.Enabled {
		if a.cache, err = openCache(ctx, cfg.Cache); err != nil {
			return nil, err
		}
		r = responder.NewCached(r, a.cache, cfg.Cache.TTL, o.logger)
	}

	if r, err = responder.NewInstrumented(r, a.ResponderName, o.tracer, o.meter, o.logger); err != nil {
		return nil, fmt.Errorf("failed to instrument responder: %w", err)
	}

	a.Controller = chat.NewController(a.store, r,
		chat.WithReplyTimeout(cfg.Responder.Timeout),
		chat.WithLogger(o.logger),
		chat.WithMeter(o.meter),
	)

	o.logger.Info("ragchat ready",
		"store", cfg.Store.Driver,
		"responder", a.ResponderName,
		"cache", cfg.Cache.Enabled,
		"seed_demo", cfg.SeedDemo)
	return a, nil
}

func (a *App) openStore(o options) (*store.ConversationStore, error) {
	var b store.Backend
	switch a.Config.Store.Driver {
	case config.StoreSQLite:
		sqlite, err := store.NewSQLiteBackend(a.Config.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		b = sqlite
	default:
		b = store.NewMemoryBackend()
	}

	storeOpts := []store.Option{store.WithLogger(o.logger)}
	if a.Config.SeedDemo {
		storeOpts = append(storeOpts, store.WithSeed(store.DemoSeed(o.now())))
	}
	s, err := store.NewConversationStore(b, storeOpts...)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

func (a *App) buildResponder(ctx context.Context, o options) (responder.Responder, error) {
	cfg := a.Config
	switch cfg.Responder.Kind {
	case config.ResponderLLM:
		client, err := backend.NewClient(backend.Settings{
			Provider:  cfg.LLM.Provider,
			Model:     cfg.LLM.Model,
			BaseURL:   cfg.LLM.BaseURL,
			APIKey:    cfg.LLM.APIKey,
			MaxTokens: cfg.LLM.MaxTokens,
		}, backend.WithLogger(o.logger), backend.WithTelemetry(o.tracer, o.meter))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
		}
		a.llm = client
		a.ResponderName = client.Provider() + ":" + client.Model()
		return client, nil

	case config.ResponderMCP:
		a.registry = mcp.NewClientRegistry()
		for _, target := range cfg.MCP.Servers {
			client, err := mcp.Connect(ctx, target, o.logger)
			if err != nil {
				o.logger.Warn("failed to connect MCP server", "target", target, "error", err)
				continue
			}
			a.registry.Register(client)
			o.logger.Info("registered MCP server", "target", target)
		}
		if a.registry.Count() == 0 {
			return nil, errors.New("no MCP server could be reached")
		}
		tools := a.registry.Refresh(ctx, o.logger)
		o.logger.Info("MCP initialized", "servers", a.registry.Count(), "tools", len(tools))

		q := mcp.NewQueryResponder(a.registry, cfg.MCP.Tool, o.logger)
		a.ResponderName = "mcp"
		return q, nil

	default:
		a.ResponderName = "simulator"
		return responder.NewSimulator(cfg.Responder.Delay), nil
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	if cfg.Driver == config.CacheRedis {
		c, err := cache.NewRedisCache(ctx, cfg.URL, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect reply cache: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(), nil
}

// Tenants returns the configured tenant catalogue
func (a *App) Tenants() []string {
	return a.Config.Catalog.Tenants
}

// Entities returns the configured entity catalogue
func (a *App) Entities() []string {
	return a.Config.Catalog.Entities
}

// Models lists the models of an Ollama backend. Other responders have none
// to list.
func (a *App) Models(ctx context.Context) ([]string, error) {
	if a.llm == nil || a.llm.Provider() != backend.ProviderOllama {
		return nil, errors.New("model listing needs the ollama backend")
	}
	models, err := a.llm.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list Ollama models: %w", err)
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	sort.Strings(names)
	return names, nil
}

// Tools lists the document tools offered by connected MCP servers
func (a *App) Tools() []string {
	if a.registry == nil {
		return nil
	}
	var out []string
	for _, tool := range a.registry.Tools() {
		out = append(out, fmt.Sprintf("%s (%s)", tool.Name, tool.ServerName))
	}
	return out
}

// Close abandons outstanding replies and releases every component
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Controller != nil {
		if err := a.Controller.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain replies: %w", err))
		}
	}
	if err := a.release(); err != nil {
		errs = append(errs, err)
	}
	a.Logger.Info("ragchat stopped")
	for _, c := range a.closers {
		c()
	}
	return errors.Join(errs...)
}

func (a *App) release() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.registry != nil {
		errs = append(errs, a.registry.Close())
	}
	return errors.Join(errs...)
}
