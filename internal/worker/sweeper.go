// Package worker hosts the background maintenance loops.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/character-hunt/internal/logging"
)

// Sweepable is any in-process state that accumulates stale entries. Each
// sweep returns how many entries it dropped.
type Sweepable interface {
	Sweep(now time.Time) int
}

// SweepFunc adapts a function to Sweepable
type SweepFunc func(now time.Time) int

// Sweep implements Sweepable
func (f SweepFunc) Sweep(now time.Time) int { return f(now) }

// Sweeper periodically purges expired in-process state: gift cooldown stamps
// whose offers lapsed unconfirmed, and anything else registered with it.
// Pending documents in Redis expire on their own via TTL; the sweeper only
// tends memory.
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable
	logger   *logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a sweeper ticking at the given interval
func NewSweeper(interval time.Duration, logger *logging.Logger, targets ...Sweepable) *Sweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Sweeper{
		interval: interval,
		targets:  targets,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithField("interval", s.interval.String()).Info("starting sweeper")
	go s.loop(ctx)
	return nil
}

// Stop signals the loop and waits for it to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is not running")
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.Info("sweeper stopped")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce(time.Now().UTC())
		}
	}
}

func (s *Sweeper) sweepOnce(now time.Time) {
	total := 0
	for _, t := range s.targets {
		total += t.Sweep(now)
	}
	if total > 0 {
		s.logger.WithField("removed", total).Debug("sweep removed stale entries")
	}
}
