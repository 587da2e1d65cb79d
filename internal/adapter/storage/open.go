// Package storage selects and opens the ledger store named by database.driver.
package storage

import (
	"context"
	"fmt"

	"banking-services/config"
	"banking-services/internal/adapter/storage/memory"
	"banking-services/internal/adapter/storage/postgres"
	"banking-services/internal/adapter/storage/sqlite"
	"banking-services/internal/core/ports"

	"github.com/rs/zerolog"
)

// Handle is an opened ledger store together with its health check.
type Handle struct {
	Store  ports.LedgerStore
	Health ports.HealthChecker
	close  func()
}

// Close releases the underlying connections.
func (h *Handle) Close() {
	if h.close != nil {
		h.close()
	}
}

// Open connects to the configured storage engine. Migrations run first when
// cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, appName string, log zerolog.Logger) (*Handle, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.AutoMigrate {
			if err := postgres.Migrate(cfg.DSN(), log); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.NewPool(ctx, cfg, appName, log)
		if err != nil {
			return nil, err
		}
		return &Handle{
			Store:  postgres.NewLedgerStore(pool),
			Health: postgres.NewHealthCheck(pool),
			close:  pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := sqlite.Migrate(db, log); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		store := sqlite.NewLedgerStore(db)
		log.Info().Str("path", cfg.SQLitePath).Msg("SQLite ledger opened")
		return &Handle{
			Store:  store,
			Health: store,
			close:  func() { _ = store.Close() },
		}, nil

	case config.DriverMemory:
		store := memory.NewLedgerStore()
		log.Warn().Msg("using in-memory ledger, balances are lost on exit")
		return &Handle{Store: store, Health: store}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
