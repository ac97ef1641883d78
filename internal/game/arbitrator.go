package game

import (
	"sync"
	"time"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
)

// ActiveSpawn is the character currently up for grabs in one chat.
type ActiveSpawn struct {
	Character *models.Character
	SpawnedAt time.Time
	won       bool
}

// Arbitrator decides the single winner of each spawn. Each chat moves
// through no-spawn, spawned and won states; the check-and-mark-won step runs
// under the chat's lock so exactly one of any number of concurrent guessers
// can win.
type Arbitrator struct {
	locks *MutexMap

	mu     sync.RWMutex
	spawns map[int64]*ActiveSpawn
}

// NewArbitrator creates a new arbitrator
func NewArbitrator() *Arbitrator {
	return &Arbitrator{
		locks:  NewMutexMap(),
		spawns: make(map[int64]*ActiveSpawn),
	}
}

// Install sets a new active spawn for a chat, replacing any previous one.
// A replaced uncaught spawn is simply gone; the chat moved on.
func (a *Arbitrator) Install(chatID int64, c *models.Character, now time.Time) {
	a.locks.Lock(chatID)
	defer a.locks.Unlock(chatID)

	a.mu.Lock()
	a.spawns[chatID] = &ActiveSpawn{Character: c, SpawnedAt: now}
	a.mu.Unlock()
}

// Active returns the character currently spawned in a chat, or nil
func (a *Arbitrator) Active(chatID int64) *models.Character {
	a.mu.RLock()
	defer a.mu.RUnlock()

	spawn, ok := a.spawns[chatID]
	if !ok || spawn.won {
		return nil
	}
	return spawn.Character
}

// Resolve arbitrates one guess. On a correct guess the spawn is marked won
// before the lock is released, so every later guesser gets the
// already-guessed outcome no matter how closely they raced.
func (a *Arbitrator) Resolve(chatID int64, rawGuess string) (*models.Character, error) {
	guess, err := ValidateGuess(rawGuess)
	if err != nil {
		return nil, err
	}

	a.locks.Lock(chatID)
	defer a.locks.Unlock(chatID)

	a.mu.RLock()
	spawn, ok := a.spawns[chatID]
	a.mu.RUnlock()

	if !ok {
		return nil, apperrors.NewNoActiveSpawnError()
	}
	if spawn.won {
		return nil, apperrors.NewAlreadyGuessedError()
	}

	if !MatchesName(guess, spawn.Character.Name) {
		return nil, apperrors.NewWrongGuessError()
	}

	spawn.won = true
	return spawn.Character, nil
}

// Clear drops the active spawn for a chat
func (a *Arbitrator) Clear(chatID int64) {
	a.locks.Lock(chatID)
	defer a.locks.Unlock(chatID)

	a.mu.Lock()
	delete(a.spawns, chatID)
	a.mu.Unlock()
}
