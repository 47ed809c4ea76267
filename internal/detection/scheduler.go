package detection

import (
	"context"
	"sync"
	"time"
)

// Ticker stands in for the display refresh callback.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type intervalTicker struct {
	t *time.Ticker
}

// NewIntervalTicker ticks fps times per second. fps <= 0 means 10.
func NewIntervalTicker(fps int) Ticker {
	if fps <= 0 {
		fps = 10
	}
	return &intervalTicker{t: time.NewTicker(time.Second / time.Duration(fps))}
}

func (t *intervalTicker) C() <-chan time.Time { return t.t.C }
func (t *intervalTicker) Stop()               { t.t.Stop() }

// Scheduler calls tick once per Ticker event on a single goroutine, so
// ticks never overlap.
type Scheduler struct {
	ticker Ticker
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartScheduler begins ticking immediately.
func StartScheduler(parent context.Context, ticker Ticker, tick func(context.Context)) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	s := &Scheduler{
		ticker: ticker,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx, tick)
	return s
}

func (s *Scheduler) run(ctx context.Context, tick func(context.Context)) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ticker.C():
			// both cases may be ready at once; cancellation wins
			if ctx.Err() != nil {
				return
			}
			tick(ctx)
		}
	}
}

// Stop revokes the next tick and waits for the running one to finish.
// After Stop returns tick is never called again. Must not be called from
// inside tick.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		s.ticker.Stop()
	})
	<-s.done
}
