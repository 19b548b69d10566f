package session

import (
	"context"
	"sync"
	"time"
)

// refresher runs fn every interval while armed. Arming an armed refresher
// and disarming a disarmed one are no-ops. disarm never waits, so it is
// safe to call from within fn.
type refresher struct {
	interval time.Duration
	fn       func(ctx context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func newRefresher(interval time.Duration, fn func(ctx context.Context)) *refresher {
	return &refresher{interval: interval, fn: fn}
}

func (r *refresher) arm() {
	if r.interval <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil || r.stopped {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fn(ctx)
		}
	}
}

func (r *refresher) disarm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *refresher) armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// stop disarms for good and waits for the running tick, if any, to finish.
func (r *refresher) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.disarm()
	r.wg.Wait()
}
