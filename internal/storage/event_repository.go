package storage

import (
	"context"
	"fmt"

	"github.com/character-hunt/internal/analytics"
)

// EventRepository writes game events to ClickHouse. Used only by the
// analytics sink; queries run out-of-band through the usual BI tooling.
type EventRepository struct {
	db *ClickHouseDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *ClickHouseDB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertEvents writes a batch of events
func (r *EventRepository) InsertEvents(ctx context.Context, events []analytics.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO game_events (event_type, chat_id, user_id, peer_id, character_id, amount, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(
			string(e.Type),
			e.ChatID,
			e.UserID,
			e.PeerID,
			e.CharacterID,
			e.Amount,
			e.At,
		); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send event batch: %w", err)
	}
	return nil
}
