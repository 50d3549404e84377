// Package cache keeps the points ranking in a redis sorted set so the
// leaderboard read path stays off postgres.
package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:points"

type Entry struct {
	UserID int
	Points int
}

type Leaderboard struct {
	rdb *redis.Client
}

func NewLeaderboard(rdb *redis.Client) *Leaderboard {
	return &Leaderboard{rdb: rdb}
}

// AddPoints increments the player's score in the sorted set.
func (l *Leaderboard) AddPoints(ctx context.Context, userID, points int) error {
	if err := l.rdb.ZIncrBy(ctx, leaderboardKey, float64(points), strconv.Itoa(userID)).Err(); err != nil {
		return fmt.Errorf("failed to increment leaderboard score for user %d: %w", userID, err)
	}
	return nil
}

// SetPoints overwrites the player's score, used when rebuilding from postgres.
func (l *Leaderboard) SetPoints(ctx context.Context, userID, points int) error {
	member := redis.Z{Score: float64(points), Member: strconv.Itoa(userID)}
	if err := l.rdb.ZAdd(ctx, leaderboardKey, member).Err(); err != nil {
		return fmt.Errorf("failed to set leaderboard score for user %d: %w", userID, err)
	}
	return nil
}

// Top returns the highest-scoring players, best first.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]Entry, error) {
	members, err := l.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, member := range members {
		id, convErr := strconv.Atoi(fmt.Sprint(member.Member))
		if convErr != nil {
			continue // чужой мусор в ключе пропускаем
		}
		entries = append(entries, Entry{UserID: id, Points: int(member.Score)})
	}
	return entries, nil
}
