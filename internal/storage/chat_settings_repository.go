package storage

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
	"github.com/jackc/pgx/v5"
)

// ChatSettingsRepository persists per-chat overrides. Chats without a row use
// the defaults, so Get never returns not-found.
type ChatSettingsRepository struct {
	db               *PostgresDB
	defaultThreshold int
}

// NewChatSettingsRepository creates a new chat settings repository.
// defaultThreshold applies to chats with no stored override.
func NewChatSettingsRepository(db *PostgresDB, defaultThreshold int) *ChatSettingsRepository {
	if defaultThreshold <= 0 {
		defaultThreshold = models.DefaultSpawnThreshold
	}
	return &ChatSettingsRepository{db: db, defaultThreshold: defaultThreshold}
}

// Get returns the settings for a chat, falling back to defaults when the chat
// has no stored row.
func (r *ChatSettingsRepository) Get(ctx context.Context, chatID int64) (*models.ChatSettings, error) {
	query := `SELECT chat_id, spawn_threshold, disabled_rarities FROM chat_settings WHERE chat_id = $1`

	var s models.ChatSettings
	var disabled []int
	err := r.db.Pool().QueryRow(ctx, query, chatID).Scan(&s.ChatID, &s.SpawnThreshold, &disabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.ChatSettings{
				ChatID:         chatID,
				SpawnThreshold: r.defaultThreshold,
			}, nil
		}
		return nil, apperrors.NewStorageError("get chat settings", err)
	}

	for _, d := range disabled {
		s.DisabledRarities = append(s.DisabledRarities, models.Rarity(d))
	}
	return &s, nil
}

// Upsert writes the settings row for a chat
func (r *ChatSettingsRepository) Upsert(ctx context.Context, s *models.ChatSettings) error {
	if s.SpawnThreshold <= 0 {
		return apperrors.NewInvalidParameterError("spawn_threshold", "must be positive")
	}

	disabled := make([]int, 0, len(s.DisabledRarities))
	for _, d := range s.DisabledRarities {
		disabled = append(disabled, int(d))
	}

	query := `
		INSERT INTO chat_settings (chat_id, spawn_threshold, disabled_rarities, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO UPDATE SET
			spawn_threshold = EXCLUDED.spawn_threshold,
			disabled_rarities = EXCLUDED.disabled_rarities,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query, s.ChatID, s.SpawnThreshold, disabled, time.Now().UTC())
	if err != nil {
		return apperrors.NewStorageError("upsert chat settings", err)
	}
	return nil
}
