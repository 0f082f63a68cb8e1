package shared

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/squash/internal/analysis"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/pipeline"
	"github.com/tombee/squash/internal/processing"
	"github.com/tombee/squash/internal/secrets"
	"github.com/tombee/squash/internal/store"
	"github.com/tombee/squash/internal/store/sqlite"
	"github.com/tombee/squash/internal/tracing"
	"github.com/tombee/squash/pkg/llm"
	"github.com/tombee/squash/pkg/llm/providers"
)

// llmCacheSize bounds the in-process completion cache of one command.
const llmCacheSize = 256

// AppOptions selects which parts of the application a command needs.
type AppOptions struct {
	// Engine builds the LLM provider and the pipeline engine.
	Engine bool
	// Store opens the run history database.
	Store bool
	// WatchUploads invalidates parsed documents when uploads change.
	WatchUploads bool

	// ScoringMethod overrides SCORING_METHOD when set.
	ScoringMethod string

	// Settings skips loading from the environment. Tests set it.
	Settings *config.Settings
	// Provider replaces the configured LLM provider.
	Provider llm.Provider
	// Registerer receives metrics. Nil uses the Prometheus default registry.
	Registerer promclient.Registerer
	// LogOutput receives logs. Nil writes to stderr.
	LogOutput io.Writer
}

// App holds the long-lived components shared by squash commands.
type App struct {
	Settings  *config.Settings
	Logger    *slog.Logger
	Manager   *connector.Manager
	Documents *processing.DocumentCache
	Events    *pipeline.EventEmitter
	Tracing   *tracing.Provider

	// Set with AppOptions.Engine.
	Provider llm.Provider
	Usage    *llm.UsageTracker
	Engine   *pipeline.Engine

	// Set with AppOptions.Store.
	Store    store.Store
	Recorder *store.Recorder

	cancel context.CancelFunc
}

// NewApp loads settings and wires the components named by opts. Callers
// must Close the app, which shuts every connector down.
func NewApp(ctx context.Context, opts AppOptions) (*App, error) {
	settings := opts.Settings
	if settings == nil {
		var err error
		settings, err = config.Load(ctx, secrets.Default())
		if err != nil {
			return nil, NewConfigError("failed to load settings", err)
		}
	}
	if path := GetServersPath(); path != "" {
		settings.ServersConfig = path
	}
	if opts.ScoringMethod != "" {
		settings.ScoringMethod = opts.ScoringMethod
	}
	if err := settings.Validate(); err != nil {
		return nil, NewConfigError("invalid settings", err)
	}
	if err := settings.EnsureDirs(); err != nil {
		return nil, NewConfigError("failed to create data directories", err)
	}

	logger := newLogger(settings, opts.LogOutput)
	ctx, cancel := context.WithCancel(ctx)
	app := &App{
		Settings:  settings,
		Logger:    logger,
		Documents: processing.NewDocumentCache(logger),
		Events:    pipeline.NewEventEmitter(false),
		cancel:    cancel,
	}

	v, _, _ := GetVersion()
	tp, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    settings.AppName,
		ServiceVersion: v,
		Exporter:       settings.TraceExporter,
		Endpoint:       settings.OTLPEndpoint,
		Insecure:       settings.OTLPInsecure,
		SampleRate:     settings.TraceSampleRate,
		Registerer:     opts.Registerer,
	})
	if err != nil {
		app.Close()
		return nil, NewConfigError("failed to set up tracing", err)
	}
	app.Tracing = tp

	reg, err := config.LoadRegistry(settings.ServersConfig)
	if err != nil {
		app.Close()
		return nil, NewConfigError("failed to load server registry", err)
	}
	app.Manager = connector.NewManager(ctx, reg, connector.Options{
		ForceMock:   settings.UseMockMCP,
		Credentials: settings.Sources,
		Logger:      logger,
	})

	if opts.WatchUploads {
		if err := app.Documents.Watch(ctx, settings.UploadDir); err != nil {
			logger.Warn("upload watcher unavailable", log.Error(err))
		}
	}

	if opts.Store {
		if err := app.openStore(); err != nil {
			app.Close()
			return nil, err
		}
	}

	if opts.Engine {
		if err := app.buildEngine(ctx, opts.Provider); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

func newLogger(settings *config.Settings, out io.Writer) *slog.Logger {
	cfg := log.FromEnv()
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Format = log.FormatText
	}
	if os.Getenv("SQUASH_LOG_LEVEL") == "" && os.Getenv("LOG_LEVEL") == "" && os.Getenv("SQUASH_DEBUG") == "" {
		// Commands print results on stdout; keep stderr quiet unless asked.
		cfg.Level = "warn"
	}
	switch {
	case GetVerbose():
		cfg.Level = "debug"
	case GetQuiet():
		cfg.Level = "error"
	}
	if out != nil {
		cfg.Output = out
	}
	return log.New(cfg).With(slog.String("app", settings.AppName))
}

func (a *App) openStore() error {
	if dir := filepath.Dir(a.Settings.DBPath); dir != "" && a.Settings.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return NewConfigError("failed to create database directory", err)
		}
	}
	db, err := sqlite.New(sqlite.Config{Path: a.Settings.DBPath, WAL: true})
	if err != nil {
		return NewConfigError(fmt.Sprintf("failed to open run history at %s", a.Settings.DBPath), err)
	}
	a.Store = db
	a.Recorder = store.NewRecorder(db, a.Logger)
	a.Recorder.Attach(a.Events)
	return nil
}

func (a *App) buildEngine(ctx context.Context, override llm.Provider) error {
	s := a.Settings
	scorer, err := analysis.NewScorer(s.ScoringMethod, s.ScoringFormula)
	if err != nil {
		return NewInputError("invalid scoring configuration", err)
	}

	a.Usage = llm.NewUsageTracker()
	provider := override
	if provider == nil {
		provider, err = providers.New(ctx, providers.Options{
			Provider:        s.LLMProvider,
			Model:           s.LLMModel,
			AnthropicAPIKey: s.AnthropicAPIKey,
			GeminiAPIKey:    s.GeminiAPIKey,
			CacheSize:       llmCacheSize,
			Tracker:         a.Usage,
		})
		if err != nil {
			return NewProviderError("failed to create LLM provider", err)
		}
		key := s.AnthropicAPIKey
		if s.LLMProvider == "gemini" {
			key = s.GeminiAPIKey
		}
		plog := log.WithProvider(a.Logger, s.LLMProvider)
		if key != "" {
			plog = plog.With("api_key", log.SanitizeAPIKey(key))
		}
		plog.Debug("llm provider ready", "model", s.LLMModel)
	} else {
		provider = llm.NewTrackingProvider(provider, a.Usage)
	}

	tracer := a.Tracing.Tracer("github.com/tombee/squash/pipeline")
	a.Provider = tracing.WrapProvider(provider, tracer, a.Tracing.Metrics())
	a.Engine = pipeline.New(pipeline.Options{
		Provider:  a.Provider,
		Servers:   a.Manager,
		Scorer:    scorer,
		Documents: a.Documents,
		Events:    a.Events,
		Metrics:   a.Tracing.Metrics(),
		Tracer:    tracer,
		Logger:    a.Logger,
	})
	return nil
}

// Close shuts down connectors, the store and telemetry. It is safe to call
// on a partially built app.
func (a *App) Close() {
	if a.Manager != nil {
		a.Manager.Shutdown()
	}
	if a.Documents != nil {
		_ = a.Documents.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn("failed to close run history", log.Error(err))
		}
	}
	if a.Tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Tracing.Shutdown(ctx); err != nil {
			a.Logger.Debug("telemetry shutdown failed", log.Error(err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
}
