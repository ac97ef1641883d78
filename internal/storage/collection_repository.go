package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	apperrors "github.com/character-hunt/internal/errors"
	"github.com/character-hunt/internal/models"
	"github.com/redis/go-redis/v9"
)

// Collections are Redis hashes under collection:{userID}; each field is an
// instance id mapping to the serialized entry. Entries are denormalized
// snapshots: catalog edits after acquisition do not touch them.

// moveInstanceScript moves one instance between two collections. The caller
// supplies the rewritten entry value since ownership metadata changes on
// transfer. Returns 0 when the source no longer holds the instance.
var moveInstanceScript = redis.NewScript(`
	local fromKey = KEYS[1]
	local toKey = KEYS[2]
	local field = ARGV[1]
	local newValue = ARGV[2]

	if redis.call('HEXISTS', fromKey, field) == 0 then
		return 0
	end

	redis.call('HDEL', fromKey, field)
	redis.call('HSET', toKey, field, newValue)
	return 1
`)

// swapInstancesScript exchanges one instance from each side of a trade. Both
// instances are re-checked inside the script so a trade settles only if both
// parties still hold what they promised.
var swapInstancesScript = redis.NewScript(`
	local aKey = KEYS[1]
	local bKey = KEYS[2]
	local aField = ARGV[1]
	local bField = ARGV[2]
	local aValueForB = ARGV[3]
	local bValueForA = ARGV[4]

	if redis.call('HEXISTS', aKey, aField) == 0 then
		return -1
	end
	if redis.call('HEXISTS', bKey, bField) == 0 then
		return -2
	end

	redis.call('HDEL', aKey, aField)
	redis.call('HDEL', bKey, bField)
	redis.call('HSET', bKey, aField, aValueForB)
	redis.call('HSET', aKey, bField, bValueForA)
	return 1
`)

// CollectionRepository handles user collection persistence
type CollectionRepository struct {
	store *RedisStore
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(store *RedisStore) *CollectionRepository {
	return &CollectionRepository{store: store}
}

func collectionKey(userID int64) string {
	return fmt.Sprintf("collection:%d", userID)
}

// Add stores an entry in a user's collection
func (r *CollectionRepository) Add(ctx context.Context, userID int64, entry *models.CollectionEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return apperrors.NewStorageError("marshal collection entry", err)
	}

	if err := r.store.Client().HSet(ctx, collectionKey(userID), entry.InstanceID, data).Err(); err != nil {
		return apperrors.NewStorageError("add collection entry", err)
	}
	return nil
}

// Get retrieves a single entry from a user's collection
func (r *CollectionRepository) Get(ctx context.Context, userID int64, instanceID string) (*models.CollectionEntry, error) {
	val, err := r.store.Client().HGet(ctx, collectionKey(userID), instanceID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NewNotOwnedError(instanceID)
		}
		return nil, apperrors.NewStorageError("get collection entry", err)
	}

	var entry models.CollectionEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, apperrors.NewStorageError("unmarshal collection entry", err)
	}
	return &entry, nil
}

// List returns all entries in a user's collection, oldest acquisition first
func (r *CollectionRepository) List(ctx context.Context, userID int64) ([]*models.CollectionEntry, error) {
	vals, err := r.store.Client().HGetAll(ctx, collectionKey(userID)).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("list collection", err)
	}

	entries := make([]*models.CollectionEntry, 0, len(vals))
	for _, val := range vals {
		var entry models.CollectionEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, apperrors.NewStorageError("unmarshal collection entry", err)
		}
		entries = append(entries, &entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AcquiredAt.Equal(entries[j].AcquiredAt) {
			return entries[i].InstanceID < entries[j].InstanceID
		}
		return entries[i].AcquiredAt.Before(entries[j].AcquiredAt)
	})
	return entries, nil
}

// Count returns the number of entries in a user's collection
func (r *CollectionRepository) Count(ctx context.Context, userID int64) (int64, error) {
	count, err := r.store.Client().HLen(ctx, collectionKey(userID)).Result()
	if err != nil {
		return 0, apperrors.NewStorageError("count collection", err)
	}
	return count, nil
}

// Remove deletes an entry from a user's collection
func (r *CollectionRepository) Remove(ctx context.Context, userID int64, instanceID string) error {
	removed, err := r.store.Client().HDel(ctx, collectionKey(userID), instanceID).Result()
	if err != nil {
		return apperrors.NewStorageError("remove collection entry", err)
	}
	if removed == 0 {
		return apperrors.NewNotOwnedError(instanceID)
	}
	return nil
}

// Move transfers an instance from one user to another, storing the rewritten
// entry on the receiver's side. Fails without changes if the sender no longer
// holds the instance.
func (r *CollectionRepository) Move(ctx context.Context, fromID, toID int64, entry *models.CollectionEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return apperrors.NewStorageError("marshal collection entry", err)
	}

	result, err := moveInstanceScript.Run(ctx, r.store.Client(),
		[]string{collectionKey(fromID), collectionKey(toID)},
		entry.InstanceID, data).Int64()
	if err != nil {
		return apperrors.NewStorageError("move collection entry", err)
	}
	if result == 0 {
		return apperrors.NewNotOwnedError(entry.InstanceID)
	}
	return nil
}

// Swap exchanges one instance from each of two users atomically. Each entry
// carries its rewritten ownership metadata for the receiving side.
func (r *CollectionRepository) Swap(ctx context.Context, aID, bID int64, fromA, fromB *models.CollectionEntry) error {
	aData, err := json.Marshal(fromA)
	if err != nil {
		return apperrors.NewStorageError("marshal collection entry", err)
	}
	bData, err := json.Marshal(fromB)
	if err != nil {
		return apperrors.NewStorageError("marshal collection entry", err)
	}

	result, err := swapInstancesScript.Run(ctx, r.store.Client(),
		[]string{collectionKey(aID), collectionKey(bID)},
		fromA.InstanceID, fromB.InstanceID, aData, bData).Int64()
	if err != nil {
		return apperrors.NewStorageError("swap collection entries", err)
	}
	switch result {
	case -1:
		return apperrors.NewNotOwnedError(fromA.InstanceID)
	case -2:
		return apperrors.NewNotOwnedError(fromB.InstanceID)
	}
	return nil
}
