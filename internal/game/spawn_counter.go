package game

import "sync"

// SpawnCounter paces spawns by counting chat messages. Counters are
// in-memory only: a restart resetting the pace is acceptable, a chat
// double-spawning from one burst of messages is not, so the
// increment-compare-reset runs as one critical section per chat.
type SpawnCounter struct {
	mu     sync.Mutex
	counts map[int64]int
}

// NewSpawnCounter creates a new spawn counter
func NewSpawnCounter() *SpawnCounter {
	return &SpawnCounter{counts: make(map[int64]int)}
}

// OnMessage records one message in a chat and reports whether the chat hit
// its spawn threshold. On a hit the counter resets to zero, so exactly one
// of any number of concurrent callers observes the trigger.
func (c *SpawnCounter) OnMessage(chatID int64, threshold int) bool {
	if threshold <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[chatID]++
	if c.counts[chatID] >= threshold {
		c.counts[chatID] = 0
		return true
	}
	return false
}

// Count returns the current message count for a chat
func (c *SpawnCounter) Count(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[chatID]
}

// Reset clears the counter for a chat
func (c *SpawnCounter) Reset(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, chatID)
}
