package store

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/dockagent/config"
	core "github.com/mohammad-safakhou/dockagent/internal/agent/core"
)

// NewStorage selects the session backend. Postgres is preferred whenever the
// configuration names one; if it cannot be reached the file backend takes
// over so a run never fails for lack of a database.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (core.Storage, error) {
	if cfg.Postgres.URL != "" || cfg.Postgres.Host != "" || cfg.Postgres.DBName != "" {
		timeout := cfg.Postgres.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		st, err := NewWithDSN(pingCtx, cfg.Postgres.DSN())
		if err == nil {
			return st, nil
		}
		log.Printf("[STORE] warn: postgres init failed: %v, falling back to file storage", err)
	}
	return NewFileStorage(cfg.File), nil
}
