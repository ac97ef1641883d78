package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
)

func testEntry(instanceID, characterID, name string, at time.Time) *models.CollectionEntry {
	return &models.CollectionEntry{
		InstanceID:  instanceID,
		CharacterID: characterID,
		Name:        name,
		Series:      "Test Series",
		Rarity:      models.RarityRare,
		AcquiredVia: models.AcquiredByGuess,
		AcquiredAt:  at,
	}
}

func TestCollectionRepository_AddGetList(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCollectionRepository(store)
	ctx := testContext(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Add(ctx, 1, testEntry("i2", "c2", "Second", now.Add(time.Minute))))
	require.NoError(t, repo.Add(ctx, 1, testEntry("i1", "c1", "First", now)))

	got, err := repo.Get(ctx, 1, "i1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)
	assert.Equal(t, models.RarityRare, got.Rarity)

	entries, err := repo.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "i1", entries[0].InstanceID, "oldest acquisition first")
	assert.Equal(t, "i2", entries[1].InstanceID)

	count, err := repo.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	t.Run("missing instance reads as not owned", func(t *testing.T) {
		_, err := repo.Get(ctx, 1, "ghost")
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	})
}

func TestCollectionRepository_Remove(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCollectionRepository(store)
	ctx := testContext(t)

	now := time.Now().UTC()
	require.NoError(t, repo.Add(ctx, 1, testEntry("i1", "c1", "First", now)))

	require.NoError(t, repo.Remove(ctx, 1, "i1"))
	assert.Error(t, repo.Remove(ctx, 1, "i1"))
}

func TestCollectionRepository_Move(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCollectionRepository(store)
	ctx := testContext(t)

	now := time.Now().UTC()
	entry := testEntry("i1", "c1", "Gifted", now)
	require.NoError(t, repo.Add(ctx, 1, entry))

	entry.AcquiredVia = models.AcquiredByGift
	require.NoError(t, repo.Move(ctx, 1, 2, entry))

	_, err := repo.Get(ctx, 1, "i1")
	assert.Error(t, err, "sender no longer holds the instance")

	got, err := repo.Get(ctx, 2, "i1")
	require.NoError(t, err)
	assert.Equal(t, models.AcquiredByGift, got.AcquiredVia)

	t.Run("moving an unowned instance fails", func(t *testing.T) {
		err := repo.Move(ctx, 1, 2, entry)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	})
}

func TestCollectionRepository_Swap(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCollectionRepository(store)
	ctx := testContext(t)

	now := time.Now().UTC()
	fromA := testEntry("a1", "c1", "Alpha", now)
	fromB := testEntry("b1", "c2", "Beta", now)
	require.NoError(t, repo.Add(ctx, 1, fromA))
	require.NoError(t, repo.Add(ctx, 2, fromB))

	require.NoError(t, repo.Swap(ctx, 1, 2, fromA, fromB))

	gotB, err := repo.Get(ctx, 2, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", gotB.Name)

	gotA, err := repo.Get(ctx, 1, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Beta", gotA.Name)

	t.Run("swap fails when one side lost its instance", func(t *testing.T) {
		err := repo.Swap(ctx, 1, 2, fromA, fromB)
		require.Error(t, err)

		// Nothing moved
		_, err = repo.Get(ctx, 1, "b1")
		assert.NoError(t, err)
		_, err = repo.Get(ctx, 2, "a1")
		assert.NoError(t, err)
	})
}
