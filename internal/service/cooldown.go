package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TradeLimiter paces trade proposals: one per cooldown window per sender.
// Limiters are created lazily and live for the process lifetime.
type TradeLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	interval time.Duration
}

// NewTradeLimiter creates a limiter allowing one proposal per interval
func NewTradeLimiter(interval time.Duration) *TradeLimiter {
	return &TradeLimiter{
		limiters: make(map[int64]*rate.Limiter),
		interval: interval,
	}
}

// Allow reports whether the sender may propose now, consuming the slot if so
func (t *TradeLimiter) Allow(senderID int64) bool {
	t.mu.Lock()
	limiter, ok := t.limiters[senderID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(t.interval), 1)
		t.limiters[senderID] = limiter
	}
	t.mu.Unlock()

	return limiter.Allow()
}

// GiftCooldown paces gift offers with a clearable timestamp map. Unlike the
// trade limiter it is clearable: an offer that expires unconfirmed refunds
// the sender's cooldown so they can re-offer immediately.
type GiftCooldown struct {
	mu       sync.Mutex
	last     map[int64]time.Time
	interval time.Duration
}

// NewGiftCooldown creates a cooldown of one offer per interval
func NewGiftCooldown(interval time.Duration) *GiftCooldown {
	return &GiftCooldown{
		last:     make(map[int64]time.Time),
		interval: interval,
	}
}

// Allow reports whether the sender may offer now, stamping the slot if so
func (g *GiftCooldown) Allow(senderID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[senderID]; ok && now.Sub(last) < g.interval {
		return false
	}
	g.last[senderID] = now
	return true
}

// Clear refunds a sender's cooldown
func (g *GiftCooldown) Clear(senderID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.last, senderID)
}

// Sweep drops stamps older than the interval. Keeps the map from growing
// with one entry per sender forever.
func (g *GiftCooldown) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, last := range g.last {
		if now.Sub(last) >= g.interval {
			delete(g.last, id)
			removed++
		}
	}
	return removed
}
