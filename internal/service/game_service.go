// Package service wires the game core to storage: spawn orchestration, win
// settlement, payments, trades, gifts and code redemption.
package service

import (
	"context"
	"time"

	"github.com/character-hunt/internal/analytics"
	"github.com/character-hunt/internal/game"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/models"
	"github.com/character-hunt/internal/storage"
	"github.com/google/uuid"
)

// CatchResult is what the winning guesser walks away with.
type CatchResult struct {
	Entry      *models.CollectionEntry
	Reward     int64
	NewBalance int64
}

// GameService runs the spawn/guess loop for all chats.
type GameService struct {
	counter     *game.SpawnCounter
	selector    *game.Selector
	arbitrator  *game.Arbitrator
	settings    game.SettingsSource
	collections *storage.CollectionRepository
	balances    *storage.BalanceRepository
	boards      *storage.LeaderboardRepository
	sink        analytics.Sink
	guessReward int64
	logger      *logging.Logger
}

// NewGameService creates a new game service
func NewGameService(
	counter *game.SpawnCounter,
	selector *game.Selector,
	arbitrator *game.Arbitrator,
	settings game.SettingsSource,
	collections *storage.CollectionRepository,
	balances *storage.BalanceRepository,
	boards *storage.LeaderboardRepository,
	sink analytics.Sink,
	guessReward int64,
	logger *logging.Logger,
) *GameService {
	if guessReward <= 0 {
		guessReward = 100
	}
	return &GameService{
		counter:     counter,
		selector:    selector,
		arbitrator:  arbitrator,
		settings:    settings,
		collections: collections,
		balances:    balances,
		boards:      boards,
		sink:        sink,
		guessReward: guessReward,
		logger:      logger,
	}
}

// OnMessage counts one chat message and, when the chat hits its threshold,
// selects and installs the next spawn. Returns the spawned character, or nil
// when nothing spawned.
func (s *GameService) OnMessage(ctx context.Context, chatID int64) (*models.Character, error) {
	settings, err := s.settings.Get(ctx, chatID)
	if err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Warn("chat settings lookup failed, using defaults")
		settings = &models.ChatSettings{ChatID: chatID, SpawnThreshold: models.DefaultSpawnThreshold}
	}

	if !s.counter.OnMessage(chatID, settings.SpawnThreshold) {
		return nil, nil
	}

	character, err := s.selector.Select(ctx, chatID)
	if err != nil {
		// Pool empty or catalog unavailable. The trigger is consumed; the
		// chat just waits another threshold worth of messages.
		return nil, err
	}

	s.arbitrator.Install(chatID, character, time.Now().UTC())

	s.sink.Record(analytics.Event{
		Type:        analytics.EventSpawn,
		ChatID:      chatID,
		CharacterID: character.ID,
	})
	return character, nil
}

// ActiveSpawn returns the uncaught character in a chat, or nil
func (s *GameService) ActiveSpawn(chatID int64) *models.Character {
	return s.arbitrator.Active(chatID)
}

// Guess resolves one guess. At most one concurrent guesser per spawn gets a
// result; everyone else gets a categorized rejection. Win settlement runs
// after arbitration: each side effect is attempted once and a failure is
// logged without voiding the win.
func (s *GameService) Guess(ctx context.Context, chatID, userID int64, text string) (*CatchResult, error) {
	character, err := s.arbitrator.Resolve(chatID, text)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := models.NewCollectionEntry(uuid.New().String(), character, models.AcquiredByGuess, now)

	if err := s.collections.Add(ctx, userID, entry); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"chat_id": chatID,
			"user_id": userID,
		}).Error("failed to store caught character")
	}

	newBalance, err := s.balances.Change(ctx, userID, s.guessReward)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("failed to credit guess reward")
	}

	if err := s.boards.RecordCatch(ctx, chatID, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to bump leaderboard")
	}

	s.sink.Record(analytics.Event{
		Type:        analytics.EventCatch,
		ChatID:      chatID,
		UserID:      userID,
		CharacterID: character.ID,
		Amount:      s.guessReward,
	})

	return &CatchResult{Entry: entry, Reward: s.guessReward, NewBalance: newBalance}, nil
}

// Balance returns a user's current balance
func (s *GameService) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.balances.Get(ctx, userID)
}

// Collection returns a user's collection, oldest first
func (s *GameService) Collection(ctx context.Context, userID int64) ([]*models.CollectionEntry, error) {
	return s.collections.List(ctx, userID)
}

// TopChat returns a chat's leaderboard
func (s *GameService) TopChat(ctx context.Context, chatID int64, limit int) ([]storage.LeaderboardEntry, error) {
	return s.boards.TopChat(ctx, chatID, limit)
}

// TopGlobal returns the global leaderboard
func (s *GameService) TopGlobal(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	return s.boards.TopGlobal(ctx, limit)
}
