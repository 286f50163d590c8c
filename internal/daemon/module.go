package daemon

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/api"
	"github.com/herosoft/wagate/internal/bus"
	"github.com/herosoft/wagate/internal/config"
	"github.com/herosoft/wagate/internal/gateway"
	"github.com/herosoft/wagate/internal/lock"
	"github.com/herosoft/wagate/internal/logging"
	"github.com/herosoft/wagate/internal/qrterm"
	"github.com/herosoft/wagate/internal/store"
	"github.com/herosoft/wagate/internal/wa"
)

// Module returns the fx module for the gateway daemon, composing all
// providers and lifecycle hooks.
func Module(cfg config.Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideDialer,
			provideManager,
			provideRenderer,
			provideSessionService,
			provideMessageService,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogFile())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(cfg config.Config, logger *zap.Logger) (*lock.Lock, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0700); err != nil {
		return nil, err
	}
	logger.Info("acquiring storage lock", zap.String("dir", cfg.StorageDir))
	l, err := lock.Acquire(cfg.StorageDir)
	if err != nil {
		return nil, err
	}
	logger.Info("storage lock acquired")
	return l, nil
}

func provideStore(cfg config.Config, logger *zap.Logger) (*store.DB, error) {
	dbPath := cfg.Database()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideDialer(cfg config.Config, logger *zap.Logger) *wa.Dialer {
	return wa.NewDialer(cfg.StorageDir, logger)
}

func provideManager(cfg config.Config, d *wa.Dialer, db *store.DB, b *bus.Bus, logger *zap.Logger) *gateway.Manager {
	return gateway.NewManager(d, db, db, b, logger, gateway.Options{
		PairingCodeTTL: cfg.PairingCodeTTL(),
		ReconnectDelay: cfg.ReconnectDelay(),
	})
}

func provideRenderer(b *bus.Bus, logger *zap.Logger) *qrterm.Renderer {
	return qrterm.NewRenderer(b, os.Stdout, logger)
}

func provideSessionService(db *store.DB, m *gateway.Manager, logger *zap.Logger) *api.SessionService {
	return api.NewSessionService(db, m, logger)
}

func provideMessageService(db *store.DB, m *gateway.Manager) *api.MessageService {
	return api.NewMessageService(db, m)
}

func registerLifecycle(lc fx.Lifecycle, cfg config.Config, manager *gateway.Manager, renderer *qrterm.Renderer, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if cfg.RenderQR {
				renderer.Start(context.Background())
			}

			// Restore every persisted session. Failures are per-session and
			// must not keep the daemon from starting.
			go manager.Bootstrap(context.Background())

			logger.Info("gateway daemon started", zap.String("storage", cfg.StorageDir))
			return nil
		},
		OnStop: func(_ context.Context) error {
			manager.Shutdown()
			renderer.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("gateway daemon stopped")
			return nil
		},
	})
}
