package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/character-hunt/internal/analytics"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/models"
	"github.com/character-hunt/internal/storage"
)

// testEnv wires the redis-backed repositories onto a miniredis instance.
type testEnv struct {
	mr          *miniredis.Miniredis
	store       *storage.RedisStore
	pending     *storage.PendingRepository
	collections *storage.CollectionRepository
	balances    *storage.BalanceRepository
	sink        *captureSink
	logger      *logging.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := storage.NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.New(logging.LevelError, logging.FormatText)
	return &testEnv{
		mr:          mr,
		store:       store,
		pending:     storage.NewPendingRepository(store),
		collections: storage.NewCollectionRepository(store),
		balances:    storage.NewBalanceRepository(store, logger),
		sink:        &captureSink{},
		logger:      logger,
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// captureSink records events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (c *captureSink) Record(e analytics.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureSink) Events() []analytics.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]analytics.Event(nil), c.events...)
}

func ownedEntry(instanceID, characterID, name string) *models.CollectionEntry {
	return &models.CollectionEntry{
		InstanceID:  instanceID,
		CharacterID: characterID,
		Name:        name,
		Series:      "Test Series",
		Rarity:      models.RarityCommon,
		AcquiredVia: models.AcquiredByGuess,
		AcquiredAt:  time.Now().UTC(),
	}
}
