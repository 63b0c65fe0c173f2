package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codmtracker/codm-backend/pkg/db/dbtest"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

type stubCounter struct {
	keys  []string
	ttl   time.Duration
	value int64
	err   error
}

func (s *stubCounter) DailyCounterKey(name string, day time.Time) string {
	return "codm:counter:" + name + ":" + day.UTC().Format("20060102")
}

func (s *stubCounter) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.keys = append(s.keys, key)
	s.ttl = ttl
	if s.err != nil {
		return 0, s.err
	}
	s.value++
	return s.value, nil
}

func TestDBSequenceCountsSameUTCDay(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	user := dbtest.CreateUser(t, conn, "", "")
	cart := dbtest.CreateOpenCart(t, conn, user.ID, nil)

	day := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dbtest.CreateOrder(t, conn, user.ID, cart.ID, enums.OrderStatusAwaitingPayment, "100", day.Add(-13*time.Hour))
	dbtest.CreateOrder(t, conn, user.ID, cart.ID, enums.OrderStatusAwaitingPayment, "100", day.Add(-11*time.Hour))
	dbtest.CreateOrder(t, conn, user.ID, cart.ID, enums.OrderStatusPaid, "100", day.Add(2*time.Hour))

	n, err := NewDBSequence(repo).Next(context.Background(), nil, day)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRedisSequenceIncrementsDailyKey(t *testing.T) {
	counter := &stubCounter{}
	seq, err := NewRedisSequence(counter, NewRepository(dbtest.Open(t)), nil)
	require.NoError(t, err)

	day := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	first, err := seq.Next(context.Background(), nil, day)
	require.NoError(t, err)
	second, err := seq.Next(context.Background(), nil, day)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, []string{"codm:counter:orders:20250601", "codm:counter:orders:20250601"}, counter.keys)
	assert.Equal(t, 48*time.Hour, counter.ttl)
}

func TestRedisSequenceFallsBackToDatabase(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.CreateUser(t, conn, "", "")
	cart := dbtest.CreateOpenCart(t, conn, user.ID, nil)
	day := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	dbtest.CreateOrder(t, conn, user.ID, cart.ID, enums.OrderStatusAwaitingPayment, "100", day)

	seq, err := NewRedisSequence(&stubCounter{err: errors.New("connection refused")}, NewRepository(conn), nil)
	require.NoError(t, err)

	n, err := seq.Next(context.Background(), nil, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestNewRedisSequenceRequiresCounter(t *testing.T) {
	_, err := NewRedisSequence(nil, nil, nil)
	assert.Error(t, err)
}
