package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petamigos/contentguard/internal/models"
)

const (
	testStream = "moderation:audit"
	testGroup  = "moderation-workers"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type recordingHandler struct {
	mu   sync.Mutex
	fail bool
	seen []redis.XMessage
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg)
	if h.fail {
		return errors.New("handler failed")
	}
	return nil
}

func newTestConsumer(client *redis.Client, handler MessageHandler, claimInterval time.Duration) *Consumer {
	c := NewConsumer(client, testStream, testGroup, "worker-test", claimInterval, zerolog.Nop(), handler)
	c.block = 10 * time.Millisecond
	return c
}

func TestPublisher_Record(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	record := models.AuditRecord{
		ID:          "rec-1",
		ContentID:   "upload-1",
		ContentType: models.ContentTypeImage,
		Reason:      "Image contains forbidden text: Forbidden word detected: scam",
		Status:      models.ReviewStatusPending,
		CreatedAt:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
	require.NoError(t, NewPublisher(client, testStream).Record(ctx, record))

	entries, err := client.XRange(ctx, testStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, ok := entries[0].Values[RecordField].(string)
	require.True(t, ok)

	var got models.AuditRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, record, got)
}

func TestConsumer_EnsureGroupIsIdempotent(t *testing.T) {
	client := newTestRedis(t)
	c := newTestConsumer(client, &recordingHandler{}, time.Second)

	require.NoError(t, c.EnsureGroup(context.Background()))
	require.NoError(t, c.EnsureGroup(context.Background()))
}

func TestConsumer_ReadAcksHandledMessages(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	handler := &recordingHandler{}
	c := newTestConsumer(client, handler, time.Second)
	require.NoError(t, c.EnsureGroup(ctx))

	pub := NewPublisher(client, testStream)
	require.NoError(t, pub.Record(ctx, models.AuditRecord{ID: "a"}))
	require.NoError(t, pub.Record(ctx, models.AuditRecord{ID: "b"}))

	require.NoError(t, c.read(ctx))
	assert.Len(t, handler.seen, 2)

	pending, err := client.XPending(ctx, testStream, testGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumer_FailedMessagesStayPending(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	handler := &recordingHandler{fail: true}
	c := newTestConsumer(client, handler, time.Second)
	require.NoError(t, c.EnsureGroup(ctx))

	require.NoError(t, NewPublisher(client, testStream).Record(ctx, models.AuditRecord{ID: "a"}))
	require.NoError(t, c.read(ctx))

	pending, err := client.XPending(ctx, testStream, testGroup).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Count)
}

func TestConsumer_ReadWithNothingQueued(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	handler := &recordingHandler{}
	c := newTestConsumer(client, handler, time.Second)
	require.NoError(t, c.EnsureGroup(ctx))

	require.NoError(t, c.read(ctx))
	assert.Empty(t, handler.seen)
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	client := newTestRedis(t)
	handler := &recordingHandler{}
	c := newTestConsumer(client, handler, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, NewPublisher(client, testStream).Record(context.Background(), models.AuditRecord{ID: "a"}))

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.seen) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
