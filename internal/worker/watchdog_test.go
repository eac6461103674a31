package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRepair struct {
	reclaimed, reset, purged int
	err                      error
}

func (f *fakeRepair) ReclaimExpired(context.Context) (int, error) {
	f.reclaimed++
	return 2, f.err
}

func (f *fakeRepair) ResetStale(context.Context) (int64, error) {
	f.reset++
	return 1, f.err
}

func TestWatchdog_SweepRunsEveryRepair(t *testing.T) {
	f := &fakeRepair{err: errors.New("db down")}
	w := &Watchdog{
		Ledger: f,
		Jobs:   f,
		Purge: func(context.Context) (int64, error) {
			f.purged++
			return 0, nil
		},
		Log: zerolog.Nop(),
	}
	w.Sweep(context.Background())
	w.Sweep(context.Background())
	if f.reclaimed != 2 || f.reset != 2 || f.purged != 2 {
		t.Fatalf("sweeps = %+v", f)
	}
}

func TestWatchdog_RunStopsOnCancel(t *testing.T) {
	w := &Watchdog{Interval: time.Millisecond, Log: zerolog.Nop()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}
}
