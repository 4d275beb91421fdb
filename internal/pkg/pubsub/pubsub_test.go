package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDescribeStep(t *testing.T) {
	ordered := []string{StepQueued, StepQuerying, StepRendering, StepUploading, StepDone}

	last := 0
	for _, step := range ordered {
		progress, message, ok := DescribeStep(step)
		require.True(t, ok, step)
		assert.Greater(t, progress, last, step)
		assert.NotEmpty(t, message)
		last = progress
	}
	assert.Equal(t, 100, last)

	_, _, ok := DescribeStep("unknown")
	assert.False(t, ok)
}

func TestEventMessage_OmitEmpty(t *testing.T) {
	msg := &EventMessage{
		Type:      TypeSubscriptionUpdated,
		AccountID: 1,
		Status:    "active",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "account_id")
	_, hasMessage := raw["message"]
	_, hasError := raw["error"]
	_, hasReport := raw["report_id"]
	assert.False(t, hasMessage, "empty message should be omitted")
	assert.False(t, hasError, "empty error should be omitted")
	assert.False(t, hasReport, "empty report id should be omitted")
}

func TestPublisherSubscriber(t *testing.T) {
	client := setupTestRedis(t)

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *EventMessage, 2)
	go func() {
		subscriber.Subscribe(ctx, func(msg *EventMessage) {
			received <- msg
		})
	}()

	// 等待订阅建立
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, ChannelAccountEvents).Result()
		return err == nil && n[ChannelAccountEvents] > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, publisher.PublishReportProgress(ctx, &EventMessage{
		AccountID: 123,
		ReportID:  456,
		Status:    "generating",
		Step:      StepRendering,
	}))
	require.NoError(t, publisher.PublishSubscription(ctx, &EventMessage{
		AccountID: 123,
		Status:    "active",
		Plan:      "insights",
		Reference: "ref_1",
	}))

	select {
	case msg := <-received:
		assert.Equal(t, TypeReportProgress, msg.Type)
		assert.Equal(t, int64(456), msg.ReportID)
		assert.Equal(t, 70, msg.Progress)
		assert.Equal(t, "Rendering report file", msg.Message)
	case <-ctx.Done():
		t.Fatal("Timeout waiting for progress message")
	}

	select {
	case msg := <-received:
		assert.Equal(t, TypeSubscriptionUpdated, msg.Type)
		assert.Equal(t, "insights", msg.Plan)
		assert.Equal(t, "ref_1", msg.Reference)
	case <-ctx.Done():
		t.Fatal("Timeout waiting for subscription message")
	}
}

func TestSubscriber_StopsOnCancel(t *testing.T) {
	client := setupTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewSubscriber(client).Subscribe(ctx, func(*EventMessage) {})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
