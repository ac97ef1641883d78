package storage

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/character-hunt/internal/errors"
)

// Leaderboards are sorted sets: lb:chat:{chatID} for a single chat and
// lb:global across all chats. Members are user ids, scores are catch counts.

// LeaderboardEntry is one row of a leaderboard query
type LeaderboardEntry struct {
	UserID int64
	Score  int64
}

// LeaderboardRepository handles catch leaderboards
type LeaderboardRepository struct {
	store *RedisStore
}

// NewLeaderboardRepository creates a new leaderboard repository
func NewLeaderboardRepository(store *RedisStore) *LeaderboardRepository {
	return &LeaderboardRepository{store: store}
}

func chatBoardKey(chatID int64) string {
	return fmt.Sprintf("lb:chat:%d", chatID)
}

const globalBoardKey = "lb:global"

// RecordCatch bumps the winner on both the chat and the global board
func (r *LeaderboardRepository) RecordCatch(ctx context.Context, chatID, userID int64) error {
	member := strconv.FormatInt(userID, 10)

	pipe := r.store.Client().Pipeline()
	pipe.ZIncrBy(ctx, chatBoardKey(chatID), 1, member)
	pipe.ZIncrBy(ctx, globalBoardKey, 1, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewStorageError("record catch", err)
	}
	return nil
}

// TopChat returns the highest scorers in a chat
func (r *LeaderboardRepository) TopChat(ctx context.Context, chatID int64, limit int) ([]LeaderboardEntry, error) {
	return r.top(ctx, chatBoardKey(chatID), limit)
}

// TopGlobal returns the highest scorers across all chats
func (r *LeaderboardRepository) TopGlobal(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	return r.top(ctx, globalBoardKey, limit)
}

func (r *LeaderboardRepository) top(ctx context.Context, key string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	members, err := r.store.Client().ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, apperrors.NewStorageError("query leaderboard", err)
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for _, m := range members {
		userID, err := strconv.ParseInt(fmt.Sprint(m.Member), 10, 64)
		if err != nil {
			return nil, apperrors.NewStorageError("parse leaderboard member", err)
		}
		entries = append(entries, LeaderboardEntry{UserID: userID, Score: int64(m.Score)})
	}
	return entries, nil
}
