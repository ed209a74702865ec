// Package leaderboard ranks accounts by lifetime points using a Redis sorted
// set. O(log N) score updates and rank lookups; the engine works without it.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotRanked is returned when an account has no leaderboard entry.
var ErrNotRanked = errors.New("leaderboard: account not ranked")

const scoreKey = "minifi:leaderboard:lifetime"

// Entry is one leaderboard row.
type Entry struct {
	Rank      int64  `json:"rank"` // 1-based
	AccountID string `json:"account_id"`
	Lifetime  int64  `json:"lifetime"`
}

// Redis implements domain.Leaderboard over a Redis sorted set.
type Redis struct {
	client *redis.Client
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New connects to Redis and verifies liveness.
func New(ctx context.Context, opts Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("leaderboard: ping redis at %s: %w", opts.Addr, err)
	}
	return &Redis{client: client}, nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error { return r.client.Close() }

// SetScore records an account's lifetime points. Lifetime totals only grow,
// so ZAdd with the latest value is always safe to replay.
func (r *Redis) SetScore(ctx context.Context, accountID string, lifetimePoints int64) error {
	err := r.client.ZAdd(ctx, scoreKey, redis.Z{
		Score:  float64(lifetimePoints),
		Member: accountID,
	}).Err()
	if err != nil {
		return fmt.Errorf("leaderboard: set score for %s: %w", accountID, err)
	}
	return nil
}

// Top returns the highest-ranked accounts, best first.
func (r *Redis) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.client.ZRevRangeWithScores(ctx, scoreKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard: top %d: %w", n, err)
	}
	entries := make([]Entry, 0, len(rows))
	for i, z := range rows {
		id, _ := z.Member.(string)
		entries = append(entries, Entry{
			Rank:      int64(i) + 1,
			AccountID: id,
			Lifetime:  int64(z.Score),
		})
	}
	return entries, nil
}

// Rank returns an account's 1-based rank and lifetime points.
func (r *Redis) Rank(ctx context.Context, accountID string) (Entry, error) {
	// ZRevRank is 0-based with 0 as the best score.
	rank, err := r.client.ZRevRank(ctx, scoreKey, accountID).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotRanked
	}
	if err != nil {
		return Entry{}, fmt.Errorf("leaderboard: rank of %s: %w", accountID, err)
	}
	score, err := r.client.ZScore(ctx, scoreKey, accountID).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("leaderboard: score of %s: %w", accountID, err)
	}
	return Entry{Rank: rank + 1, AccountID: accountID, Lifetime: int64(score)}, nil
}

// Remove drops an account from the ranking.
func (r *Redis) Remove(ctx context.Context, accountID string) error {
	if err := r.client.ZRem(ctx, scoreKey, accountID).Err(); err != nil {
		return fmt.Errorf("leaderboard: remove %s: %w", accountID, err)
	}
	return nil
}
