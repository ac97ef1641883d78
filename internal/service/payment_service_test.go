package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/character-hunt/internal/analytics"
	apperrors "github.com/character-hunt/internal/errors"
)

func newPaymentService(env *testEnv) *PaymentService {
	return NewPaymentService(env.pending, env.balances, env.sink, env.logger)
}

func TestPaymentService_Propose(t *testing.T) {
	env := newTestEnv(t)
	svc := newPaymentService(env)
	ctx := testContext(t)

	_, err := env.balances.Change(ctx, 1, 500)
	require.NoError(t, err)

	t.Run("happy path issues a token", func(t *testing.T) {
		payment, err := svc.Propose(ctx, 1, 2, 200)
		require.NoError(t, err)
		assert.NotEmpty(t, payment.Token)
		assert.Equal(t, int64(200), payment.Amount)
	})

	t.Run("non positive amount", func(t *testing.T) {
		for _, amount := range []int64{0, -5} {
			_, err := svc.Propose(ctx, 1, 2, amount)
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryUserInput))
		}
	})

	t.Run("self payment rejected", func(t *testing.T) {
		_, err := svc.Propose(ctx, 1, 1, 100)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryUserInput))
	})

	t.Run("insufficient balance rejected early", func(t *testing.T) {
		_, err := svc.Propose(ctx, 1, 2, 10_000)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInvariant))
	})
}

func TestPaymentService_Confirm(t *testing.T) {
	env := newTestEnv(t)
	svc := newPaymentService(env)
	ctx := testContext(t)

	_, err := env.balances.Change(ctx, 1, 500)
	require.NoError(t, err)

	payment, err := svc.Propose(ctx, 1, 2, 200)
	require.NoError(t, err)

	t.Run("only the sender may confirm", func(t *testing.T) {
		_, err := svc.Confirm(ctx, 2, payment.Token)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAuthorization))
	})

	t.Run("confirm moves the money once", func(t *testing.T) {
		settled, err := svc.Confirm(ctx, 1, payment.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(200), settled.Amount)

		senderBal, err := env.balances.Get(ctx, 1)
		require.NoError(t, err)
		receiverBal, err := env.balances.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(300), senderBal)
		assert.Equal(t, int64(200), receiverBal)

		events := env.sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, analytics.EventPayment, events[0].Type)
		assert.Equal(t, int64(200), events[0].Amount)
	})

	t.Run("second confirm of a settled token fails", func(t *testing.T) {
		_, err := svc.Confirm(ctx, 1, payment.Token)
		require.Error(t, err)

		senderBal, err := env.balances.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(300), senderBal, "no double spend")
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.Confirm(ctx, 1, "no-such-token")
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestPaymentService_ConcurrentConfirmsSettleOnce(t *testing.T) {
	env := newTestEnv(t)
	svc := newPaymentService(env)
	ctx := testContext(t)

	_, err := env.balances.Change(ctx, 1, 500)
	require.NoError(t, err)
	payment, err := svc.Propose(ctx, 1, 2, 100)
	require.NoError(t, err)

	const racers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	settled := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Confirm(ctx, 1, payment.Token); err == nil {
				mu.Lock()
				settled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, settled, "token claims exactly once")

	receiverBal, err := env.balances.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), receiverBal)
}

func TestPaymentService_Cancel(t *testing.T) {
	env := newTestEnv(t)
	svc := newPaymentService(env)
	ctx := testContext(t)

	_, err := env.balances.Change(ctx, 1, 500)
	require.NoError(t, err)
	payment, err := svc.Propose(ctx, 1, 2, 100)
	require.NoError(t, err)

	t.Run("only the sender may cancel", func(t *testing.T) {
		err := svc.Cancel(ctx, 2, payment.Token)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAuthorization))
	})

	t.Run("cancel voids the token", func(t *testing.T) {
		require.NoError(t, svc.Cancel(ctx, 1, payment.Token))

		_, err := svc.Confirm(ctx, 1, payment.Token)
		require.Error(t, err, "cancelled token cannot be confirmed")

		senderBal, err := env.balances.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(500), senderBal, "nothing moved")
	})
}
