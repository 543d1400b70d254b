package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"sync"

	"github.com/vk/flowdash/internal/admin"
	"github.com/vk/flowdash/internal/api"
	"github.com/vk/flowdash/internal/ctxlog"
	"github.com/vk/flowdash/internal/feed"
	"github.com/vk/flowdash/internal/metrics"
	"github.com/vk/flowdash/internal/pipeline"
	"github.com/vk/flowdash/internal/session"
	"github.com/vk/flowdash/internal/simulator"
	"github.com/vk/flowdash/internal/telemetry"
	"github.com/vk/flowdash/internal/workflow"
	"go.opentelemetry.io/otel"
)

// ServiceName identifies the process in logs and traces.
const ServiceName = "flowdash"

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	pipeline *pipeline.Definition
	store    *workflow.Store
	sim      *simulator.Simulator
	feed     *feed.Server
	poller   *metrics.Poller
	sessions *session.Manager
	console  *admin.Console
	emitter  *telemetry.Emitter
	handler  http.Handler

	// closers run in reverse order on shutdown.
	closers []func(context.Context) error

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// NewApp builds every component from cfg. Nothing is started until Run.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, config: cfg}
	if err := a.build(ctx); err != nil {
		_ = a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.config

	def, err := a.loadPipeline(ctx)
	if err != nil {
		return err
	}
	a.pipeline = def
	a.logger.Info("Pipeline loaded.", "pipeline", def.Name, "nodes", len(def.Graph.Nodes), "edges", len(def.Graph.Edges))

	shutdownTracing, err := telemetry.Setup(ctx, ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)
	sinks := []telemetry.Sink{telemetry.NewLogSink(a.logger)}
	if cfg.OTelEndpoint != "" {
		sinks = append(sinks, telemetry.NewTraceSink(otel.GetTracerProvider()))
		a.logger.Info("Tracing enabled.", "endpoint", cfg.OTelEndpoint)
	}
	a.emitter = telemetry.NewEmitter(nil, sinks...)

	a.store = workflow.NewStore(def.Graph, workflow.WithRand(a.rand(1)), workflow.WithLogger(a.logger))
	a.sim = simulator.New(a.store, def.Simulator, simulator.WithRand(a.rand(2)), simulator.WithLogger(a.logger))
	a.feed = feed.NewServer(a.store, a.sim, feed.AlwaysOn(cfg.SimulateWithoutViewers), feed.WithLogger(a.logger))

	source := metrics.NewSimulated(metrics.WithRand(a.rand(3)))
	a.poller, err = metrics.NewPoller(source,
		metrics.WithInterval(cfg.MetricsInterval),
		metrics.WithStaleAfter(cfg.MetricsStaleAfter),
		metrics.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	store, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	secret, err := a.jwtSecret()
	if err != nil {
		return err
	}
	a.sessions, err = session.NewManager(secret, store,
		session.WithTTL(cfg.SessionTTL),
		session.WithLoginLatency(cfg.LoginLatency),
		session.WithLogger(a.logger.With("component", "session")),
	)
	if err != nil {
		return err
	}

	a.console = admin.NewConsole(a.emitter, admin.WithLogger(a.logger))

	a.handler = a.routes(api.New(api.Deps{
		Store:     a.store,
		Simulator: a.sim,
		Sessions:  a.sessions,
		Metrics:   a.poller,
		Console:   a.console,
		Telemetry: a.emitter,
		Logger:    a.logger,
	}))
	return nil
}

func (a *App) loadPipeline(ctx context.Context) (*pipeline.Definition, error) {
	if a.config.PipelinePath == "" {
		a.logger.Debug("No pipeline file given, using the built-in pipeline.")
		return pipeline.Default(ctx)
	}
	return pipeline.Load(ctx, a.config.PipelinePath)
}

func (a *App) sessionStore(ctx context.Context) (session.Store, error) {
	if a.config.RedisURL == "" {
		return session.NewMemoryStore(nil), nil
	}
	rs, err := session.NewRedisStore(ctx, a.config.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return rs.Close() })
	a.logger.Info("Sessions stored in redis.")
	return rs, nil
}

func (a *App) jwtSecret() ([]byte, error) {
	if a.config.JWTSecret != "" {
		return []byte(a.config.JWTSecret), nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	a.logger.Warn("FLOWDASH_JWT_SECRET not set; sessions will not survive a restart.")
	return []byte(hex.EncodeToString(buf)), nil
}

// rand returns an independent random source for stream n, seeded from
// config when a seed is set.
func (a *App) rand(stream uint64) *mrand.Rand {
	if a.config.Seed == 0 {
		return mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))
	}
	return mrand.New(mrand.NewPCG(a.config.Seed, stream))
}

// Handler returns the root HTTP handler. This is primarily for testing.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Store returns the workflow store. This is primarily for testing.
func (a *App) Store() *workflow.Store {
	return a.store
}

// Simulator returns the simulator. This is primarily for testing.
func (a *App) Simulator() *simulator.Simulator {
	return a.sim
}

// Addr returns the listener address once Run is serving, or "".
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

func (a *App) close(ctx context.Context) error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
