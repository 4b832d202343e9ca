package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/dockagent/config"
	"github.com/mohammad-safakhou/dockagent/internal/store"
)

// Janitor sweeps sessions that stopped reporting progress (crashed worker,
// killed process) and marks them aborted so they stop showing as running.
type Janitor struct {
	Store  *store.Store
	Rdb    *redis.Client
	Cfg    config.JanitorConfig
	Logger *log.Logger
	Stop   chan struct{}

	last *time.Time
}

func (j *Janitor) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-j.Stop:
				ticker.Stop()
				return
			case now := <-ticker.C:
				j.tick(now)
			}
		}
	}()
}

func (j *Janitor) tick(now time.Time) {
	if !isDue(j.Cfg.Schedule, j.last, now) {
		return
	}
	at := now
	j.last = &at

	ctx := context.Background()

	// distributed lock to avoid duplicate sweeps across replicas
	if j.Rdb != nil {
		ttl := j.Cfg.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		ok, _ := j.Rdb.SetNX(ctx, "janitor:lock", "1", ttl).Result()
		if !ok {
			return
		}
		defer j.Rdb.Del(ctx, "janitor:lock")
	}

	staleAfter := j.Cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 2 * time.Hour
	}
	cutoff := now.Add(-staleAfter)

	n, err := j.Store.MarkStaleSessions(ctx, cutoff)
	if err != nil {
		j.logger().Printf("sweep failed: %v", err)
		return
	}
	if n > 0 {
		j.logger().Printf("marked %d stale session(s) aborted (older than %s)", n, staleAfter)
	}
}

func (j *Janitor) logger() *log.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return log.New(log.Writer(), "[JANITOR] ", log.LstdFlags)
}

// isDue determines if a sweep scheduled with cronSpec should run now given
// the last time it ran. Supports "@daily", "@hourly", and standard 5-field
// cron expressions.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			// If never run, due now
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
