package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redeem codes live in two keys: code:{c} is a hash with the code fields and
// code:{c}:used is the set of users who already redeemed it. Both are written
// inside one Lua script so a user can never redeem twice and a capped code
// can never exceed its use limit, no matter how many redemptions race.

var redeemScript = redis.NewScript(`
	local codeKey = KEYS[1]
	local usedKey = KEYS[2]
	local userID = ARGV[1]

	if redis.call('EXISTS', codeKey) == 0 then
		return -1
	end
	if redis.call('HGET', codeKey, 'active') ~= '1' then
		return -2
	end
	if redis.call('SISMEMBER', usedKey, userID) == 1 then
		return -3
	end

	local maxUses = tonumber(redis.call('HGET', codeKey, 'max_uses') or '0')
	local uses = tonumber(redis.call('HGET', codeKey, 'uses') or '0')
	if maxUses > 0 and uses >= maxUses then
		redis.call('HSET', codeKey, 'active', '0')
		return -2
	end

	redis.call('SADD', usedKey, userID)
	uses = uses + 1
	redis.call('HSET', codeKey, 'uses', uses)
	if maxUses > 0 and uses >= maxUses then
		redis.call('HSET', codeKey, 'active', '0')
	end
	return uses
`)

// CodeRepository handles redeem code persistence
type CodeRepository struct {
	store *RedisStore
}

// NewCodeRepository creates a new code repository
func NewCodeRepository(store *RedisStore) *CodeRepository {
	return &CodeRepository{store: store}
}

func codeKey(code string) string {
	return fmt.Sprintf("code:%s", code)
}

func codeUsedKey(code string) string {
	return fmt.Sprintf("code:%s:used", code)
}

// Create stores a new redeem code. Fails if the code already exists.
func (r *CodeRepository) Create(ctx context.Context, c *models.RedeemCode) error {
	// HSETNX on a sentinel field claims the code name
	claimed, err := r.store.Client().HSetNX(ctx, codeKey(c.Code), "kind", string(c.Kind)).Result()
	if err != nil {
		return apperrors.NewStorageError("create redeem code", err)
	}
	if !claimed {
		return apperrors.NewInvalidParameterError("code", "already exists")
	}

	active := "0"
	if c.Active {
		active = "1"
	}
	err = r.store.Client().HSet(ctx, codeKey(c.Code),
		"amount", strconv.FormatInt(c.Amount, 10),
		"character_id", c.CharacterID,
		"max_uses", strconv.Itoa(c.MaxUses),
		"uses", strconv.Itoa(c.Uses),
		"active", active,
		"created_by", strconv.FormatInt(c.CreatedBy, 10),
		"created_at", c.CreatedAt.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return apperrors.NewStorageError("create redeem code", err)
	}
	return nil
}

// Get retrieves a redeem code by its name
func (r *CodeRepository) Get(ctx context.Context, code string) (*models.RedeemCode, error) {
	fields, err := r.store.Client().HGetAll(ctx, codeKey(code)).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("get redeem code", err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NewNotFoundError("redeem code", code)
	}
	return codeFromFields(code, fields)
}

// Redeem marks the code as used by the given user, atomically enforcing the
// per-user and total use limits. Returns the redeemed code on success.
func (r *CodeRepository) Redeem(ctx context.Context, code string, userID int64) (*models.RedeemCode, error) {
	result, err := redeemScript.Run(ctx, r.store.Client(),
		[]string{codeKey(code), codeUsedKey(code)},
		strconv.FormatInt(userID, 10)).Int64()
	if err != nil {
		return nil, apperrors.NewStorageError("redeem code", err)
	}

	switch result {
	case -1:
		return nil, apperrors.NewNotFoundError("redeem code", code)
	case -2:
		return nil, apperrors.NewCodeExhaustedError(code)
	case -3:
		return nil, apperrors.NewAlreadyRedeemedError(code)
	}

	return r.Get(ctx, code)
}

// Deactivate turns a code off without deleting its redemption history
func (r *CodeRepository) Deactivate(ctx context.Context, code string) error {
	exists, err := r.store.Client().Exists(ctx, codeKey(code)).Result()
	if err != nil {
		return apperrors.NewStorageError("deactivate redeem code", err)
	}
	if exists == 0 {
		return apperrors.NewNotFoundError("redeem code", code)
	}

	if err := r.store.Client().HSet(ctx, codeKey(code), "active", "0").Err(); err != nil {
		return apperrors.NewStorageError("deactivate redeem code", err)
	}
	return nil
}

func codeFromFields(code string, fields map[string]string) (*models.RedeemCode, error) {
	amount, err := strconv.ParseInt(fields["amount"], 10, 64)
	if err != nil {
		return nil, apperrors.NewStorageError("parse redeem code amount", err)
	}
	maxUses, err := strconv.Atoi(fields["max_uses"])
	if err != nil {
		return nil, apperrors.NewStorageError("parse redeem code max_uses", err)
	}
	uses, err := strconv.Atoi(fields["uses"])
	if err != nil {
		return nil, apperrors.NewStorageError("parse redeem code uses", err)
	}
	createdBy, err := strconv.ParseInt(fields["created_by"], 10, 64)
	if err != nil {
		return nil, apperrors.NewStorageError("parse redeem code created_by", err)
	}
	createdAt, err := time.Parse(time.RFC3339, fields["created_at"])
	if err != nil {
		return nil, apperrors.NewStorageError("parse redeem code created_at", err)
	}

	return &models.RedeemCode{
		Code:        code,
		Kind:        models.CodeKind(fields["kind"]),
		Amount:      amount,
		CharacterID: fields["character_id"],
		MaxUses:     maxUses,
		Uses:        uses,
		Active:      fields["active"] == "1",
		CreatedBy:   createdBy,
		CreatedAt:   createdAt,
	}, nil
}
