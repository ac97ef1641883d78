package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/character-hunt/internal/analytics"
	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
)

func newTradeService(env *testEnv) *TradeService {
	return NewTradeService(env.pending, env.collections, env.sink, env.logger)
}

func TestTradeService_ProposeTrade(t *testing.T) {
	ctx := testContext(t)

	// The cooldown slot is consumed on every proposal attempt past the
	// self-check, so each case gets its own service.
	setup := func(t *testing.T) (*testEnv, *TradeService) {
		t.Helper()
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))
		require.NoError(t, env.collections.Add(ctx, 2, ownedEntry("i2", "c2", "Morty")))
		return env, svc
	}

	t.Run("self trade rejected", func(t *testing.T) {
		_, svc := setup(t)
		_, err := svc.ProposeTrade(ctx, 1, 1, "i1", "i2")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryUserInput))
	})

	t.Run("proposer must own the offered instance", func(t *testing.T) {
		_, svc := setup(t)
		_, err := svc.ProposeTrade(ctx, 1, 2, "i2", "i2")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	})

	t.Run("counterparty must own the requested instance", func(t *testing.T) {
		_, svc := setup(t)
		_, err := svc.ProposeTrade(ctx, 1, 2, "i1", "missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	})

	t.Run("valid proposal stored", func(t *testing.T) {
		env, svc := setup(t)
		trade, err := svc.ProposeTrade(ctx, 1, 2, "i1", "i2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), trade.Proposer)
		assert.Equal(t, "i2", trade.RequestedInstance)

		stored, err := env.pending.GetTrade(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, trade.OfferedInstance, stored.OfferedInstance)
	})

	t.Run("second proposal hits the cooldown", func(t *testing.T) {
		_, svc := setup(t)
		_, err := svc.ProposeTrade(ctx, 1, 2, "i1", "i2")
		require.NoError(t, err)

		_, err = svc.ProposeTrade(ctx, 1, 2, "i1", "i2")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestTradeService_ConfirmTrade(t *testing.T) {
	ctx := testContext(t)

	setup := func(t *testing.T) (*testEnv, *TradeService) {
		t.Helper()
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))
		require.NoError(t, env.collections.Add(ctx, 2, ownedEntry("i2", "c2", "Morty")))
		_, err := svc.ProposeTrade(ctx, 1, 2, "i1", "i2")
		require.NoError(t, err)
		return env, svc
	}

	t.Run("proposer cannot confirm their own trade", func(t *testing.T) {
		_, svc := setup(t)
		_, err := svc.ConfirmTrade(ctx, 1, 2)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAuthorization))
	})

	t.Run("confirm swaps both instances", func(t *testing.T) {
		env, svc := setup(t)
		trade, err := svc.ConfirmTrade(ctx, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, "i1", trade.OfferedInstance)

		got, err := env.collections.Get(ctx, 2, "i1")
		require.NoError(t, err)
		assert.Equal(t, models.AcquiredByTrade, got.AcquiredVia)

		got, err = env.collections.Get(ctx, 1, "i2")
		require.NoError(t, err)
		assert.Equal(t, models.AcquiredByTrade, got.AcquiredVia)

		_, err = env.collections.Get(ctx, 1, "i1")
		require.Error(t, err, "proposer no longer holds the offered instance")

		_, err = env.pending.GetTrade(ctx, 2, 1)
		require.Error(t, err, "settled trade removed")

		events := env.sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, analytics.EventTrade, events[0].Type)
	})

	t.Run("confirm fails when the offered instance is gone", func(t *testing.T) {
		env, svc := setup(t)
		require.NoError(t, env.collections.Remove(ctx, 1, "i1"))

		_, err := svc.ConfirmTrade(ctx, 2, 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))

		got, err := env.collections.Get(ctx, 2, "i2")
		require.NoError(t, err)
		assert.Equal(t, models.AcquiredByGuess, got.AcquiredVia, "nothing moved")
	})

	t.Run("expired trade rejected and purged", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))
		require.NoError(t, env.collections.Add(ctx, 2, ownedEntry("i2", "c2", "Morty")))

		stale := &models.PendingTrade{
			Proposer:          1,
			Counterparty:      2,
			OfferedInstance:   "i1",
			RequestedInstance: "i2",
			CreatedAt:         time.Now().UTC().Add(-models.TradeTTL - time.Second),
		}
		require.NoError(t, env.pending.PutTrade(ctx, stale))

		_, err := svc.ConfirmTrade(ctx, 2, 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))

		_, err = env.pending.GetTrade(ctx, 2, 1)
		require.Error(t, err, "expired trade purged")
	})
}

func TestTradeService_CancelTrade(t *testing.T) {
	env := newTestEnv(t)
	svc := newTradeService(env)
	ctx := testContext(t)

	require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))
	require.NoError(t, env.collections.Add(ctx, 2, ownedEntry("i2", "c2", "Morty")))
	_, err := svc.ProposeTrade(ctx, 1, 2, "i1", "i2")
	require.NoError(t, err)

	t.Run("proposer cannot cancel", func(t *testing.T) {
		err := svc.CancelTrade(ctx, 1, 2)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAuthorization))
	})

	t.Run("counterparty cancels", func(t *testing.T) {
		require.NoError(t, svc.CancelTrade(ctx, 2, 1))
		_, err := env.pending.GetTrade(ctx, 2, 1)
		require.Error(t, err)
	})
}

func TestTradeService_Gifts(t *testing.T) {
	ctx := testContext(t)

	t.Run("self gift rejected", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		_, err := svc.ProposeGift(ctx, 1, 1, "i1")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryUserInput))
	})

	t.Run("unowned instance refunds the cooldown", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))

		_, err := svc.ProposeGift(ctx, 1, 2, "missing")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))

		// The failed offer must not block the next one
		_, err = svc.ProposeGift(ctx, 1, 2, "i1")
		require.NoError(t, err)
	})

	t.Run("second offer within the cooldown rejected", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))

		_, err := svc.ProposeGift(ctx, 1, 2, "i1")
		require.NoError(t, err)

		_, err = svc.ProposeGift(ctx, 1, 3, "i1")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("confirm moves the entry to the receiver", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))

		_, err := svc.ProposeGift(ctx, 1, 2, "i1")
		require.NoError(t, err)

		gift, err := svc.ConfirmGift(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, "i1", gift.OfferedInstance)

		got, err := env.collections.Get(ctx, 2, "i1")
		require.NoError(t, err)
		assert.Equal(t, models.AcquiredByGift, got.AcquiredVia)

		_, err = env.collections.Get(ctx, 1, "i1")
		require.Error(t, err, "sender no longer holds the entry")

		events := env.sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, analytics.EventGift, events[0].Type)
	})

	t.Run("only the sender confirms", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))

		_, err := svc.ProposeGift(ctx, 1, 2, "i1")
		require.NoError(t, err)

		_, err = svc.ConfirmGift(ctx, 2, 2)
		require.Error(t, err)
	})

	t.Run("expired offer rejected and cooldown refunded", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))

		stale := &models.PendingGift{
			Sender:          1,
			Receiver:        2,
			OfferedInstance: "i1",
			CreatedAt:       time.Now().UTC().Add(-models.GiftTTL - time.Second),
		}
		require.NoError(t, env.pending.PutGift(ctx, stale))

		_, err := svc.ConfirmGift(ctx, 1, 2)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))

		_, err = svc.ProposeGift(ctx, 1, 2, "i1")
		require.NoError(t, err, "expired offer does not hold the cooldown")
	})

	t.Run("cancel withdraws the offer and refunds the cooldown", func(t *testing.T) {
		env := newTestEnv(t)
		svc := newTradeService(env)
		require.NoError(t, env.collections.Add(ctx, 1, ownedEntry("i1", "c1", "Rick")))

		_, err := svc.ProposeGift(ctx, 1, 2, "i1")
		require.NoError(t, err)

		require.NoError(t, svc.CancelGift(ctx, 1, 2))

		_, err = env.pending.GetGift(ctx, 1, 2)
		require.Error(t, err)

		_, err = svc.ProposeGift(ctx, 1, 2, "i1")
		require.NoError(t, err)
	})
}
