package paystackwebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codmtracker/codm-backend/pkg/paystack"
)

type memoryStore struct {
	keys   map[string]string
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "codm:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type recordingHandler struct {
	events []paystack.Event
	err    error
}

func (r *recordingHandler) HandleWebhook(_ context.Context, event paystack.Event) error {
	r.events = append(r.events, event)
	return r.err
}

func charge(reference string) paystack.Event {
	return paystack.Event{Event: paystack.EventChargeSuccess, Data: paystack.EventData{Reference: reference}}
}

func newGuardedService(t *testing.T, store *memoryStore, handler *recordingHandler) *Service {
	t.Helper()
	guard, err := NewIdempotencyGuard(store, time.Hour, IdempotencyScope)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Payments: handler, Guard: guard})
	require.NoError(t, err)
	return svc
}

func TestHandleEventSkipsDuplicateDeliveries(t *testing.T) {
	store := newMemoryStore()
	handler := &recordingHandler{}
	svc := newGuardedService(t, store, handler)

	require.NoError(t, svc.HandleEvent(context.Background(), charge("CODM-TRACKER-ABC")))
	require.NoError(t, svc.HandleEvent(context.Background(), charge("CODM-TRACKER-ABC")))

	assert.Len(t, handler.events, 1)
	assert.Contains(t, store.keys, "codm:idempotency:paystack:charge.success:CODM-TRACKER-ABC")
}

func TestHandleEventReleasesKeyOnFailure(t *testing.T) {
	store := newMemoryStore()
	handler := &recordingHandler{err: errors.New("db down")}
	svc := newGuardedService(t, store, handler)

	require.Error(t, svc.HandleEvent(context.Background(), charge("CODM-TRACKER-RETRY")))
	assert.Empty(t, store.keys)

	handler.err = nil
	require.NoError(t, svc.HandleEvent(context.Background(), charge("CODM-TRACKER-RETRY")))
	assert.Len(t, handler.events, 2)
}

func TestHandleEventDegradesWhenGuardFails(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("redis unavailable")
	handler := &recordingHandler{}
	svc := newGuardedService(t, store, handler)

	require.NoError(t, svc.HandleEvent(context.Background(), charge("CODM-TRACKER-X")))
	require.NoError(t, svc.HandleEvent(context.Background(), charge("CODM-TRACKER-X")))
	assert.Len(t, handler.events, 2)
}

func TestHandleEventIgnoresIrrelevantEvents(t *testing.T) {
	handler := &recordingHandler{}
	svc, err := NewService(ServiceParams{Payments: handler})
	require.NoError(t, err)

	require.NoError(t, svc.HandleEvent(context.Background(), paystack.Event{Event: "refund.processed", Data: paystack.EventData{Reference: "R"}}))
	require.NoError(t, svc.HandleEvent(context.Background(), paystack.Event{Event: paystack.EventChargeSuccess}))
	assert.Empty(t, handler.events)
}

func TestNewIdempotencyGuardValidation(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Hour, IdempotencyScope)
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(newMemoryStore(), -time.Second, IdempotencyScope)
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(newMemoryStore(), time.Hour, "")
	assert.Error(t, err)
}
