// Package worker runs the background side of the controller: a pool that
// executes scheduled summarization jobs and a watchdog that reclaims
// expired token reservations and stale jobs.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Claimer claims and runs the next scheduled job. It reports whether a job
// was found.
type Claimer interface {
	ClaimNext(ctx context.Context) (bool, error)
}

// Pool polls a Claimer from several goroutines. The job queue is the
// database; Wake only shortens the wait.
type Pool struct {
	claimer     Claimer
	log         zerolog.Logger
	concurrency int
	interval    time.Duration
	wake        chan struct{}
}

// NewPool builds a pool of concurrency workers polling every interval.
func NewPool(c Claimer, log zerolog.Logger, concurrency int, interval time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Pool{
		claimer:     c,
		log:         log.With().Str("component", "summary_pool").Logger(),
		concurrency: concurrency,
		interval:    interval,
		wake:        make(chan struct{}, 1),
	}
}

// Wake asks an idle worker to poll now. It never blocks.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled and every worker has returned.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info().Int("concurrency", p.concurrency).Dur("interval", p.interval).Msg("starting summary workers")

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (p *Pool) loop(ctx context.Context, id int) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Int("worker_id", id).Msg("worker stopped")
			return
		case <-ticker.C:
		case <-p.wake:
		}
		// Drain everything that is waiting.
		for ctx.Err() == nil && p.claim(ctx, id) {
		}
	}
}

// claim runs one job and reports whether the loop should try again.
func (p *Pool) claim(ctx context.Context, id int) (again bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker_id", id).Err(fmt.Errorf("panic: %v", r)).Msg("summary job panic")
			again = false
		}
	}()

	found, err := p.claimer.ClaimNext(ctx)
	if err != nil {
		p.log.Warn().Int("worker_id", id).Err(err).Msg("summary job failed")
	}
	return found
}
