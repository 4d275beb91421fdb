package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agripulse/agri_go_server/internal/pkg/pubsub"
)

func TestHub_Relay_FromRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub()
	server := newTestServer(t, hub, func() int64 { return 500 })
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.IsOnline(500) }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pubsub.NewSubscriber(client).Subscribe(ctx, hub.Relay)

	// 等订阅建立
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) > 0
	}, time.Second, 10*time.Millisecond)

	publisher := pubsub.NewPublisher(client)
	require.NoError(t, publisher.PublishReportProgress(ctx, &pubsub.EventMessage{
		AccountID: 500,
		ReportID:  9,
		Status:    "generating",
		Step:      pubsub.StepQuerying,
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string              `json:"type"`
		Data pubsub.EventMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, pubsub.TypeReportProgress, msg.Type)
	assert.Equal(t, int64(9), msg.Data.ReportID)
	assert.Equal(t, 40, msg.Data.Progress)
}

func TestHub_Relay_Ignored(t *testing.T) {
	hub := NewHub()

	// 无连接或无账户时静默忽略
	hub.Relay(nil)
	hub.Relay(&pubsub.EventMessage{Type: pubsub.TypeSubscriptionUpdated})
	hub.Relay(&pubsub.EventMessage{Type: pubsub.TypeSubscriptionUpdated, AccountID: 7})
	assert.Equal(t, 0, hub.ConnectionCount())
}
