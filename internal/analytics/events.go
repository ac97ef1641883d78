// Package analytics records game events into ClickHouse for offline
// analysis. Recording is fire-and-forget: the game never waits on, and never
// fails because of, the analytics pipeline.
package analytics

import "time"

// EventType identifies what happened
type EventType string

const (
	EventSpawn    EventType = "spawn"
	EventCatch    EventType = "catch"
	EventPayment  EventType = "payment"
	EventTrade    EventType = "trade"
	EventGift     EventType = "gift"
	EventRedeem   EventType = "redeem"
)

// Event is one game occurrence. Fields that do not apply to a given type are
// left at their zero value.
type Event struct {
	Type        EventType
	ChatID      int64
	UserID      int64
	PeerID      int64
	CharacterID string
	Amount      int64
	At          time.Time
}

// Sink accepts events. Implementations must never block the caller for long
// and must swallow their own failures.
type Sink interface {
	Record(e Event)
}

// NoopSink discards everything. Used when ClickHouse is disabled.
type NoopSink struct{}

// Record implements Sink
func (NoopSink) Record(Event) {}
