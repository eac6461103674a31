package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reclaimer releases expired token reservations.
type Reclaimer interface {
	ReclaimExpired(ctx context.Context) (int, error)
}

// Resetter returns stuck summarization jobs to idle.
type Resetter interface {
	ResetStale(ctx context.Context) (int64, error)
}

// PurgeFunc deletes expired records, such as idempotency keys.
type PurgeFunc func(ctx context.Context) (int64, error)

// Watchdog periodically repairs state left behind by crashed or slow calls.
type Watchdog struct {
	Ledger   Reclaimer
	Jobs     Resetter
	Purge    PurgeFunc
	Interval time.Duration
	Log      zerolog.Logger
}

// Run sweeps every Interval until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures are logged and retried on the next tick.
func (w *Watchdog) Sweep(ctx context.Context) {
	if w.Ledger != nil {
		if n, err := w.Ledger.ReclaimExpired(ctx); err != nil {
			w.Log.Warn().Err(err).Msg("reclaim expired reservations")
		} else if n > 0 {
			w.Log.Info().Int("reservations", n).Msg("expired reservations released")
		}
	}
	if w.Jobs != nil {
		if _, err := w.Jobs.ResetStale(ctx); err != nil {
			w.Log.Warn().Err(err).Msg("reset stale summary jobs")
		}
	}
	if w.Purge != nil {
		if n, err := w.Purge(ctx); err != nil {
			w.Log.Warn().Err(err).Msg("purge expired records")
		} else if n > 0 {
			w.Log.Debug().Int64("rows", n).Msg("expired records purged")
		}
	}
}
