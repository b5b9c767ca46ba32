package store

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically removes audit log entries older than the retention
// window. Consent proofs only need to be held as long as the consent itself
// can be relied on; anything older is liability, not evidence.
type Janitor struct {
	logs      ConsentLogRepository
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewJanitor builds a janitor. The sweep interval defaults to an hour.
func NewJanitor(logs ConsentLogRepository, retention, interval time.Duration, logger *slog.Logger) *Janitor {
	if logs == nil {
		panic("store: consent log repository cannot be nil")
	}
	if retention <= 0 {
		panic("store: retention must be positive")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{logs: logs, retention: retention, interval: interval, logger: logger}
}

// Run sweeps until the context is cancelled. One sweep runs immediately on
// start so a long-idle deployment catches up without waiting a full tick.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.retention)

	removed, err := j.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("consent log cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		j.logger.Info("expired consent logs removed",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
}
