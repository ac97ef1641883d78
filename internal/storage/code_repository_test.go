package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
)

func newTestCode(code string, maxUses int) *models.RedeemCode {
	return &models.RedeemCode{
		Code:      code,
		Kind:      models.CodeKindCurrency,
		Amount:    500,
		MaxUses:   maxUses,
		Active:    true,
		CreatedBy: 99,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCodeRepository_CreateAndGet(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCodeRepository(store)
	ctx := testContext(t)

	require.NoError(t, repo.Create(ctx, newTestCode("WELCOME", 3)))

	got, err := repo.Get(ctx, "WELCOME")
	require.NoError(t, err)
	assert.Equal(t, models.CodeKindCurrency, got.Kind)
	assert.Equal(t, int64(500), got.Amount)
	assert.Equal(t, 3, got.MaxUses)
	assert.Equal(t, 0, got.Uses)
	assert.True(t, got.Active)
	assert.Equal(t, int64(99), got.CreatedBy)

	t.Run("duplicate code rejected", func(t *testing.T) {
		err := repo.Create(ctx, newTestCode("WELCOME", 1))
		assert.Error(t, err)
	})

	t.Run("unknown code not found", func(t *testing.T) {
		_, err := repo.Get(ctx, "NOPE")
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))
	})
}

func TestCodeRepository_Redeem(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCodeRepository(store)
	ctx := testContext(t)

	require.NoError(t, repo.Create(ctx, newTestCode("DROP", 2)))

	t.Run("first redeem succeeds", func(t *testing.T) {
		code, err := repo.Redeem(ctx, "DROP", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, code.Uses)
		assert.True(t, code.Active)
	})

	t.Run("same user cannot redeem twice", func(t *testing.T) {
		_, err := repo.Redeem(ctx, "DROP", 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	})

	t.Run("last use deactivates the code", func(t *testing.T) {
		code, err := repo.Redeem(ctx, "DROP", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, code.Uses)
		assert.False(t, code.Active)
	})

	t.Run("exhausted code rejects everyone", func(t *testing.T) {
		_, err := repo.Redeem(ctx, "DROP", 3)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	})

	t.Run("unknown code not found", func(t *testing.T) {
		_, err := repo.Redeem(ctx, "MISSING", 1)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))
	})
}

func TestCodeRepository_UnlimitedUses(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCodeRepository(store)
	ctx := testContext(t)

	// MaxUses 0 means uncapped
	require.NoError(t, repo.Create(ctx, newTestCode("OPEN", 0)))

	for user := int64(1); user <= 20; user++ {
		code, err := repo.Redeem(ctx, "OPEN", user)
		require.NoError(t, err)
		assert.True(t, code.Active)
	}
}

func TestCodeRepository_Deactivate(t *testing.T) {
	store, _ := setupRedis(t)
	repo := NewCodeRepository(store)
	ctx := testContext(t)

	require.NoError(t, repo.Create(ctx, newTestCode("KILLME", 0)))
	require.NoError(t, repo.Deactivate(ctx, "KILLME"))

	_, err := repo.Redeem(ctx, "KILLME", 1)
	require.Error(t, err)

	assert.Error(t, repo.Deactivate(ctx, "GHOST"))
}
