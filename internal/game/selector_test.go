package game

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/models"
)

type fakeCatalog struct {
	characters []*models.Character
	err        error
	calls      int
}

func (f *fakeCatalog) ListEligible(_ context.Context, disabled []models.Rarity, exclude []string) ([]*models.Character, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []*models.Character
	for _, c := range f.characters {
		if excluded[c.ID] {
			continue
		}
		skip := false
		for _, r := range disabled {
			if c.Rarity == r {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeSettings struct {
	settings *models.ChatSettings
	err      error
}

func (f *fakeSettings) Get(_ context.Context, chatID int64) (*models.ChatSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.settings != nil {
		return f.settings, nil
	}
	return &models.ChatSettings{ChatID: chatID, SpawnThreshold: models.DefaultSpawnThreshold}, nil
}

func selectorLogger() *logging.Logger {
	return logging.New(logging.LevelError, logging.FormatText)
}

func TestSelector_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("picks from the eligible pool", func(t *testing.T) {
		catalog := &fakeCatalog{characters: []*models.Character{
			testCharacter("c1", "Rick"),
		}}
		s := NewSelector(catalog, &fakeSettings{}, 3, selectorLogger())

		picked, err := s.Select(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "c1", picked.ID)
		assert.Equal(t, []string{"c1"}, s.RecentlyShown(1))
	})

	t.Run("disabled rarities never spawn", func(t *testing.T) {
		catalog := &fakeCatalog{characters: []*models.Character{
			testCharacter("common", "Rick"),
			{ID: "legendary", Name: "Bird Person", Rarity: models.RarityLegendary},
		}}
		settings := &fakeSettings{settings: &models.ChatSettings{
			ChatID:           1,
			SpawnThreshold:   models.DefaultSpawnThreshold,
			DisabledRarities: []models.Rarity{models.RarityLegendary},
		}}
		s := NewSelector(catalog, settings, 0, selectorLogger())

		for i := 0; i < 20; i++ {
			picked, err := s.Select(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, "common", picked.ID)
		}
	})

	t.Run("empty catalog", func(t *testing.T) {
		s := NewSelector(&fakeCatalog{}, &fakeSettings{}, 3, selectorLogger())
		_, err := s.Select(ctx, 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))
	})

	t.Run("catalog failure degrades to no characters", func(t *testing.T) {
		s := NewSelector(&fakeCatalog{err: errors.New("connection refused")}, &fakeSettings{}, 3, selectorLogger())
		_, err := s.Select(ctx, 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))
	})

	t.Run("settings failure falls back to defaults", func(t *testing.T) {
		catalog := &fakeCatalog{characters: []*models.Character{testCharacter("c1", "Rick")}}
		s := NewSelector(catalog, &fakeSettings{err: errors.New("connection refused")}, 3, selectorLogger())

		picked, err := s.Select(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "c1", picked.ID)
	})
}

func TestSelector_RecentWindow(t *testing.T) {
	ctx := context.Background()
	pool := []*models.Character{
		testCharacter("c1", "Rick"),
		testCharacter("c2", "Morty"),
		testCharacter("c3", "Summer"),
	}

	t.Run("no immediate repeats within the window", func(t *testing.T) {
		catalog := &fakeCatalog{characters: pool}
		s := NewSelector(catalog, &fakeSettings{}, 2, selectorLogger())

		first, err := s.Select(ctx, 1)
		require.NoError(t, err)
		second, err := s.Select(ctx, 1)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("window clears once it exhausts the pool", func(t *testing.T) {
		catalog := &fakeCatalog{characters: pool}
		s := NewSelector(catalog, &fakeSettings{}, len(pool), selectorLogger())

		seen := make(map[string]bool)
		for i := 0; i < len(pool); i++ {
			picked, err := s.Select(ctx, 1)
			require.NoError(t, err)
			seen[picked.ID] = true
		}
		assert.Len(t, seen, len(pool), "window forces variety across the pool")

		// Pool is fully excluded now; the next pick must clear and retry
		// rather than fail.
		picked, err := s.Select(ctx, 1)
		require.NoError(t, err)
		assert.True(t, seen[picked.ID])
	})

	t.Run("window is per chat", func(t *testing.T) {
		catalog := &fakeCatalog{characters: []*models.Character{testCharacter("c1", "Rick")}}
		s := NewSelector(catalog, &fakeSettings{}, 5, selectorLogger())

		_, err := s.Select(ctx, 1)
		require.NoError(t, err)

		picked, err := s.Select(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "c1", picked.ID, "chat 1 recents do not shadow chat 2")
	})
}
