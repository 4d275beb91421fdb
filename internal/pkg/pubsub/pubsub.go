package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const ChannelAccountEvents = "agripulse_account_events"

// 事件类型
const (
	TypeReportProgress      = "report_progress"
	TypeSubscriptionUpdated = "subscription_updated"
)

// EventMessage 推送给账户的事件
type EventMessage struct {
	Type      string `json:"type"`
	AccountID int64  `json:"account_id"`
	ReportID  int64  `json:"report_id,omitempty"`
	Status    string `json:"status"`
	Step      string `json:"step,omitempty"`
	Progress  int    `json:"progress,omitempty"`
	Plan      string `json:"plan,omitempty"`
	Reference string `json:"reference,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// 报表生成阶段
const (
	StepQueued    = "queued"
	StepQuerying  = "querying"
	StepRendering = "rendering"
	StepUploading = "uploading"
	StepDone      = "done"
)

type stepInfo struct {
	progress int
	message  string
}

var steps = map[string]stepInfo{
	StepQueued:    {10, "Report queued"},
	StepQuerying:  {40, "Querying agricultural data"},
	StepRendering: {70, "Rendering report file"},
	StepUploading: {90, "Uploading report"},
	StepDone:      {100, "Report ready"},
}

// DescribeStep 阶段的默认进度与提示，未知阶段返回 false
func DescribeStep(step string) (progress int, message string, ok bool) {
	info, ok := steps[step]
	return info.progress, info.message, ok
}

// Publisher 所有进程共用一个频道，由 server 端按账户分发
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishReportProgress 未填写的进度与提示按阶段补全
func (p *Publisher) PublishReportProgress(ctx context.Context, msg *EventMessage) error {
	msg.Type = TypeReportProgress
	if progress, message, ok := DescribeStep(msg.Step); ok {
		if msg.Progress == 0 {
			msg.Progress = progress
		}
		if msg.Message == "" {
			msg.Message = message
		}
	}
	return p.publish(ctx, msg)
}

// PublishSubscription 发布订阅状态变化
func (p *Publisher) PublishSubscription(ctx context.Context, msg *EventMessage) error {
	msg.Type = TypeSubscriptionUpdated
	return p.publish(ctx, msg)
}

func (p *Publisher) publish(ctx context.Context, msg *EventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", msg.Type, err)
	}
	return p.client.Publish(ctx, ChannelAccountEvents, payload).Err()
}

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 阻塞直到 ctx 取消，无法解码的消息直接丢弃
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*EventMessage)) error {
	sub := s.client.Subscribe(ctx, ChannelAccountEvents)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var event EventMessage
			if json.Unmarshal([]byte(raw.Payload), &event) == nil {
				handler(&event)
			}
		}
	}
}
