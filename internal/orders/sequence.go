package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/pkg/logger"
)

const (
	orderCounterName = "orders"
	orderCounterTTL  = 48 * time.Hour
)

// DailySequence hands out the 1-based position of an order within its UTC
// calendar day. Implementations must be safe for concurrent checkouts.
type DailySequence interface {
	Next(ctx context.Context, tx *gorm.DB, day time.Time) (int64, error)
}

type dailyCounter interface {
	DailyCounterKey(name string, day time.Time) string
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisSequence increments a per-day Redis counter. When Redis errors it
// falls back to the database count so checkout keeps working; the unique
// order number index still rejects any duplicate that slips through.
type RedisSequence struct {
	counter  dailyCounter
	fallback DailySequence
	logg     *logger.Logger
}

// NewRedisSequence builds the Redis-backed sequence.
func NewRedisSequence(counter dailyCounter, repo *Repository, logg *logger.Logger) (*RedisSequence, error) {
	if counter == nil {
		return nil, fmt.Errorf("redis counter required")
	}
	return &RedisSequence{counter: counter, fallback: NewDBSequence(repo), logg: logg}, nil
}

func (s *RedisSequence) Next(ctx context.Context, tx *gorm.DB, day time.Time) (int64, error) {
	n, err := s.counter.IncrWithTTL(ctx, s.counter.DailyCounterKey(orderCounterName, day), orderCounterTTL)
	if err == nil {
		return n, nil
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "event", "orders.sequence_fallback"), "redis order counter unavailable: "+err.Error())
	}
	return s.fallback.Next(ctx, tx, day)
}

// DBSequence counts the orders already created that day inside the checkout
// transaction.
type DBSequence struct {
	repo *Repository
}

func NewDBSequence(repo *Repository) *DBSequence {
	return &DBSequence{repo: repo}
}

func (s *DBSequence) Next(ctx context.Context, tx *gorm.DB, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	count, err := s.repo.WithTx(tx).CountCreatedBetween(ctx, start, start.Add(24*time.Hour))
	if err != nil {
		return 0, fmt.Errorf("count same-day orders: %w", err)
	}
	return count + 1, nil
}
