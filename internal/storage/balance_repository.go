package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Balances are stored as plain integer strings under balance:{userID}.
// A missing key reads as zero; balances are never allowed to go negative.

// Lua keeps check-and-debit atomic so concurrent transfers cannot overdraw.
var debitScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local balance = tonumber(redis.call('GET', key) or '0')
	if balance < amount then
		return -1
	end

	return redis.call('DECRBY', key, amount)
`)

// BalanceRepository handles the currency ledger
type BalanceRepository struct {
	store  *RedisStore
	logger *logging.Logger
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(store *RedisStore, logger *logging.Logger) *BalanceRepository {
	return &BalanceRepository{store: store, logger: logger}
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:%d", userID)
}

// Get returns the current balance for a user. Unknown users have balance 0.
func (r *BalanceRepository) Get(ctx context.Context, userID int64) (int64, error) {
	val, err := r.store.Client().Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, apperrors.NewStorageError("get balance", err)
	}

	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, apperrors.NewStorageError("parse balance", err)
	}
	return balance, nil
}

// Change adds delta to a user's balance and returns the new balance. The key
// is created on first use, so rewarding an unseen user just works.
func (r *BalanceRepository) Change(ctx context.Context, userID int64, delta int64) (int64, error) {
	if delta <= 0 {
		return 0, apperrors.NewInvalidParameterError("delta", "must be positive")
	}

	balance, err := r.store.Client().IncrBy(ctx, balanceKey(userID), delta).Result()
	if err != nil {
		return 0, apperrors.NewStorageError("change balance", err)
	}
	return balance, nil
}

// Debit subtracts amount from a user's balance if it is covered. Returns the
// new balance, or an insufficient balance error without modifying anything.
func (r *BalanceRepository) Debit(ctx context.Context, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.NewInvalidParameterError("amount", "must be positive")
	}

	result, err := debitScript.Run(ctx, r.store.Client(), []string{balanceKey(userID)}, amount).Int64()
	if err != nil {
		return 0, apperrors.NewStorageError("debit balance", err)
	}
	if result < 0 {
		return 0, apperrors.NewInsufficientBalanceError(amount)
	}
	return result, nil
}

// Transfer moves amount from one user to another. The debit is conditional
// so the sender can never go negative; if crediting the receiver then fails,
// the sender is compensated. A failed compensation is logged at error level
// and left for manual repair, so the ledger total never silently inflates.
func (r *BalanceRepository) Transfer(ctx context.Context, fromID, toID int64, amount int64) error {
	if amount <= 0 {
		return apperrors.NewInvalidParameterError("amount", "must be positive")
	}
	if fromID == toID {
		return apperrors.NewInvalidParameterError("recipient", "cannot transfer to yourself")
	}

	if _, err := r.Debit(ctx, fromID, amount); err != nil {
		return err
	}

	if err := r.store.Client().IncrBy(ctx, balanceKey(toID), amount).Err(); err != nil {
		if _, compErr := r.store.Client().IncrBy(ctx, balanceKey(fromID), amount).Result(); compErr != nil {
			r.logger.WithError(compErr).WithFields(map[string]interface{}{
				"from":   fromID,
				"to":     toID,
				"amount": amount,
			}).Error("transfer compensation failed, sender debited without credit")
		}
		return apperrors.NewStorageError("transfer credit", err)
	}
	return nil
}
