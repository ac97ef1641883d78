package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
	"github.com/redis/go-redis/v9"
)

// Pending trades, gifts and payments are short-lived JSON documents. Each is
// written with SET NX plus a TTL, so duplicate proposals are rejected at the
// store and abandoned proposals disappear on their own.

// PendingRepository handles pending operation persistence
type PendingRepository struct {
	store *RedisStore
}

// NewPendingRepository creates a new pending repository
func NewPendingRepository(store *RedisStore) *PendingRepository {
	return &PendingRepository{store: store}
}

// tradeKey orders the pair so both directions map to the same slot. At most
// one trade can be pending between any two users.
func tradeKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("trade:%d:%d", a, b)
}

func giftKey(sender, receiver int64) string {
	return fmt.Sprintf("gift:%d:%d", sender, receiver)
}

func paymentKey(token string) string {
	return fmt.Sprintf("payment:%s", token)
}

// PutTrade stores a pending trade proposal. Fails if one is already pending
// between the pair.
func (r *PendingRepository) PutTrade(ctx context.Context, t *models.PendingTrade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return apperrors.NewStorageError("marshal pending trade", err)
	}

	ok, err := r.store.Client().SetNX(ctx, tradeKey(t.Proposer, t.Counterparty), data, models.TradeTTL).Result()
	if err != nil {
		return apperrors.NewStorageError("put pending trade", err)
	}
	if !ok {
		return apperrors.NewAlreadyPendingError("trade")
	}
	return nil
}

// GetTrade retrieves the pending trade between two users
func (r *PendingRepository) GetTrade(ctx context.Context, a, b int64) (*models.PendingTrade, error) {
	val, err := r.store.Client().Get(ctx, tradeKey(a, b)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewNotFoundError("pending trade", tradeKey(a, b))
		}
		return nil, apperrors.NewStorageError("get pending trade", err)
	}

	var t models.PendingTrade
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, apperrors.NewStorageError("unmarshal pending trade", err)
	}
	return &t, nil
}

// DeleteTrade removes the pending trade between two users
func (r *PendingRepository) DeleteTrade(ctx context.Context, a, b int64) error {
	if err := r.store.Client().Del(ctx, tradeKey(a, b)).Err(); err != nil {
		return apperrors.NewStorageError("delete pending trade", err)
	}
	return nil
}

// PutGift stores a pending gift. Fails if the sender already has one pending
// toward the same receiver.
func (r *PendingRepository) PutGift(ctx context.Context, g *models.PendingGift) error {
	data, err := json.Marshal(g)
	if err != nil {
		return apperrors.NewStorageError("marshal pending gift", err)
	}

	ok, err := r.store.Client().SetNX(ctx, giftKey(g.Sender, g.Receiver), data, models.GiftTTL).Result()
	if err != nil {
		return apperrors.NewStorageError("put pending gift", err)
	}
	if !ok {
		return apperrors.NewAlreadyPendingError("gift")
	}
	return nil
}

// GetGift retrieves the pending gift from sender to receiver
func (r *PendingRepository) GetGift(ctx context.Context, sender, receiver int64) (*models.PendingGift, error) {
	val, err := r.store.Client().Get(ctx, giftKey(sender, receiver)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewNotFoundError("pending gift", giftKey(sender, receiver))
		}
		return nil, apperrors.NewStorageError("get pending gift", err)
	}

	var g models.PendingGift
	if err := json.Unmarshal([]byte(val), &g); err != nil {
		return nil, apperrors.NewStorageError("unmarshal pending gift", err)
	}
	return &g, nil
}

// DeleteGift removes the pending gift from sender to receiver
func (r *PendingRepository) DeleteGift(ctx context.Context, sender, receiver int64) error {
	if err := r.store.Client().Del(ctx, giftKey(sender, receiver)).Err(); err != nil {
		return apperrors.NewStorageError("delete pending gift", err)
	}
	return nil
}

// PutPayment stores a pending payment under its confirmation token
func (r *PendingRepository) PutPayment(ctx context.Context, p *models.PendingPayment) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperrors.NewStorageError("marshal pending payment", err)
	}

	ok, err := r.store.Client().SetNX(ctx, paymentKey(p.Token), data, models.PaymentTTL).Result()
	if err != nil {
		return apperrors.NewStorageError("put pending payment", err)
	}
	if !ok {
		return apperrors.NewAlreadyPendingError("payment")
	}
	return nil
}

// GetPayment retrieves a pending payment by token
func (r *PendingRepository) GetPayment(ctx context.Context, token string) (*models.PendingPayment, error) {
	val, err := r.store.Client().Get(ctx, paymentKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewExpiredError("payment")
		}
		return nil, apperrors.NewStorageError("get pending payment", err)
	}

	var p models.PendingPayment
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, apperrors.NewStorageError("unmarshal pending payment", err)
	}
	return &p, nil
}

// ClaimPayment deletes a pending payment and reports whether this caller won
// the delete. At most one confirmation can claim a token.
func (r *PendingRepository) ClaimPayment(ctx context.Context, token string) (bool, error) {
	removed, err := r.store.Client().Del(ctx, paymentKey(token)).Result()
	if err != nil {
		return false, apperrors.NewStorageError("claim pending payment", err)
	}
	return removed > 0, nil
}
