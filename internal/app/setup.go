package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindmirror/mindmirror/db"
	"github.com/mindmirror/mindmirror/internal/accum"
	"github.com/mindmirror/mindmirror/internal/cache"
	"github.com/mindmirror/mindmirror/internal/config"
	"github.com/mindmirror/mindmirror/internal/ledger"
	"github.com/mindmirror/mindmirror/internal/log"
	"github.com/mindmirror/mindmirror/internal/notify"
	"github.com/mindmirror/mindmirror/internal/observability"
	"github.com/mindmirror/mindmirror/internal/profile"
	"github.com/mindmirror/mindmirror/internal/synth"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.New(log.Config{})
	}

	a := &App{Config: cfg, logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, a)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Ledger = ledger.New(pool, logger)
	a.Profiles = profile.New(pool, logger)

	layer, cacheClose, err := provideCache(ctx, cfg, a)
	if err != nil {
		return nil, err
	}
	a.CacheLayer = layer
	a.cacheClose = cacheClose
	a.Bundles = profile.NewBundleView(a.Profiles, layer)

	synthesizer, err := synth.New(g, synth.Config{
		ModelName:     "googleai/" + cfg.ModelName,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Timeout:       cfg.SynthTimeout,
		RatePerMinute: cfg.SynthRatePerMin,
		Retry:         synth.DefaultRetryConfig(),
	}, logger)
	if err != nil {
		return nil, err
	}

	a.Dispatcher = provideDispatcher(cfg, a)

	coordinator, err := accum.New(pool, a.Ledger, a.Profiles, synthesizer,
		layer, a.Dispatcher, cfg.MinEvidenceChars, logger)
	if err != nil {
		return nil, err
	}
	a.Coordinator = coordinator

	return a, nil
}

// provideOtelShutdown sets up tracing before Genkit initialization so
// the TracerProvider carries the exporter when model spans start.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, a *App) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	}, a.Logger())
	if err != nil {
		a.Logger().Warn("tracing setup failed, continuing without", "error", err)
		return func() {}
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			a.Logger().Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := db.OpenPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// provideGenkit initializes the model runtime with the Gemini provider.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}),
	)
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

// provideCache builds the configured cache backend and wraps it in the
// read-through layer.
func provideCache(ctx context.Context, cfg *config.Config, a *App) (*cache.Layer, func() error, error) {
	var backend cache.Cache
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		backend = cache.NewMemory()
	default: // redis
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		backend = r
	}

	layer := cache.NewLayer(backend, cache.TTLs{
		Token:   cfg.TokenTTL,
		Profile: cfg.ProfileTTL,
		Bundle:  cfg.BundleTTL,
	}, a.Logger())

	return layer, backend.Close, nil
}

// provideDispatcher wires the Telegram notifier when a bot token is
// configured. Without one, notifications are disabled and synthesis
// proceeds silently.
func provideDispatcher(cfg *config.Config, a *App) *notify.Dispatcher {
	if cfg.TelegramToken == "" {
		return nil
	}
	// All notifications route to the configured chat until per-user
	// chat mapping lands with the account system.
	resolve := func(context.Context, notify.Notification) (string, error) {
		if cfg.TelegramChatID == "" {
			return "", errors.New("telegram_chat_id is not configured")
		}
		return cfg.TelegramChatID, nil
	}
	telegram := notify.NewTelegram(cfg.TelegramToken, resolve, nil)
	return notify.NewDispatcher(telegram, notify.Config{}, a.Logger())
}
