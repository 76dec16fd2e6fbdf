// Package app provides application initialization and dependency
// injection.
//
// App is the container that wires configuration, the database pool,
// the model runtime, the cache backend, the notification dispatcher
// and the accumulation coordinator. Setup builds everything in
// dependency order; Close tears it down in reverse.
package app

import (
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindmirror/mindmirror/internal/accum"
	"github.com/mindmirror/mindmirror/internal/cache"
	"github.com/mindmirror/mindmirror/internal/config"
	"github.com/mindmirror/mindmirror/internal/ledger"
	"github.com/mindmirror/mindmirror/internal/notify"
	"github.com/mindmirror/mindmirror/internal/profile"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit      *genkit.Genkit
	DBPool      *pgxpool.Pool
	Ledger      *ledger.Store
	Profiles    *profile.Store
	Bundles     *profile.BundleView
	CacheLayer  *cache.Layer
	Dispatcher  *notify.Dispatcher
	Coordinator *accum.Coordinator

	logger      *slog.Logger
	cacheClose  func() error
	otelCleanup func()
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

// Close gracefully shuts down all resources. The dispatcher drains
// its queue before the pool and cache close, so committed syntheses
// still notify.
func (a *App) Close() error {
	a.Logger().Info("shutting down")

	var errs []error

	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}

	if a.cacheClose != nil {
		if err := a.cacheClose(); err != nil {
			errs = append(errs, err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return errors.Join(errs...)
}
