package game

import (
	"context"
	"math/rand"
	"sync"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/models"
)

// Catalog is the slice of the character store the selector needs.
type Catalog interface {
	ListEligible(ctx context.Context, disabled []models.Rarity, exclude []string) ([]*models.Character, error)
}

// SettingsSource resolves per-chat game settings.
type SettingsSource interface {
	Get(ctx context.Context, chatID int64) (*models.ChatSettings, error)
}

// Selector picks the next character to spawn in a chat. It keeps a per-chat
// window of recently shown ids so consecutive spawns stay varied; once the
// window covers the whole eligible pool it is cleared and every character is
// back in play.
type Selector struct {
	catalog  Catalog
	settings SettingsSource
	window   int
	logger   *logging.Logger

	mu     sync.Mutex
	recent map[int64][]string
}

// NewSelector creates a new selector. window is the number of recently shown
// characters remembered per chat; zero disables the memory.
func NewSelector(catalog Catalog, settings SettingsSource, window int, logger *logging.Logger) *Selector {
	return &Selector{
		catalog:  catalog,
		settings: settings,
		window:   window,
		logger:   logger,
		recent:   make(map[int64][]string),
	}
}

// Select picks a uniformly random eligible character for the chat. A failing
// catalog query degrades to "no characters": spawn cadence never crashes the
// message loop.
func (s *Selector) Select(ctx context.Context, chatID int64) (*models.Character, error) {
	settings, err := s.settings.Get(ctx, chatID)
	if err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Warn("chat settings lookup failed, using defaults")
		settings = &models.ChatSettings{ChatID: chatID, SpawnThreshold: models.DefaultSpawnThreshold}
	}

	s.mu.Lock()
	exclude := append([]string(nil), s.recent[chatID]...)
	s.mu.Unlock()

	candidates, err := s.catalog.ListEligible(ctx, settings.DisabledRarities, exclude)
	if err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Error("eligible character query failed")
		return nil, apperrors.NewNoCharactersError(chatID)
	}

	// When recents exhaust the pool, clear the window and widen again
	if len(candidates) == 0 && len(exclude) > 0 {
		s.mu.Lock()
		delete(s.recent, chatID)
		s.mu.Unlock()

		candidates, err = s.catalog.ListEligible(ctx, settings.DisabledRarities, nil)
		if err != nil {
			s.logger.WithError(err).WithField("chat_id", chatID).Error("eligible character query failed")
			return nil, apperrors.NewNoCharactersError(chatID)
		}
	}

	if len(candidates) == 0 {
		return nil, apperrors.NewNoCharactersError(chatID)
	}

	picked := candidates[rand.Intn(len(candidates))] // #nosec G404 - game variety, not credentials

	if s.window > 0 {
		s.mu.Lock()
		recent := append(s.recent[chatID], picked.ID)
		if len(recent) > s.window {
			recent = recent[len(recent)-s.window:]
		}
		s.recent[chatID] = recent
		s.mu.Unlock()
	}

	return picked, nil
}

// RecentlyShown returns the remembered recent ids for a chat
func (s *Selector) RecentlyShown(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recent[chatID]...)
}
