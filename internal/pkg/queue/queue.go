package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 任务类型
const (
	JobReport = "report"
	JobEmail  = "email"
)

// 邮件模板
const (
	TemplateVerification = "verification"
	TemplateReceipt      = "receipt"
	TemplateContactAdmin = "contact_admin"
	TemplateContactAck   = "contact_ack"
	TemplateReportReady  = "report_ready"
)

// Queue Redis 列表实现的任务队列，LPUSH 入队 BRPOP 出队
type Queue struct {
	client *redis.Client
	key    string
}

// EmailJob 异步发送的邮件
type EmailJob struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Data     map[string]string `json:"data,omitempty"`
}

type JobMessage struct {
	Type      string    `json:"type"`
	AccountID int64     `json:"account_id,omitempty"`
	ReportID  int64     `json:"report_id,omitempty"`
	Email     *EmailJob `json:"email,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
}

func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

func (q *Queue) Push(ctx context.Context, msg *JobMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", msg.Type, err)
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *Queue) PushReport(ctx context.Context, accountID, reportID int64) error {
	return q.Push(ctx, &JobMessage{Type: JobReport, AccountID: accountID, ReportID: reportID})
}

func (q *Queue) PushEmail(ctx context.Context, job *EmailJob) error {
	return q.Push(ctx, &JobMessage{Type: JobEmail, Email: job})
}

// Requeue 以 Attempt+1 重新入队，返回新的尝试次数
func (q *Queue) Requeue(ctx context.Context, msg *JobMessage) (int, error) {
	next := *msg
	next.Attempt++
	return next.Attempt, q.Push(ctx, &next)
}

// Pop 阻塞等待任务，超时返回 nil, nil
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*JobMessage, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop %s: %w", q.key, err)
	}
	if len(res) != 2 {
		return nil, nil
	}

	var msg JobMessage
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("decode job from %s: %w", q.key, err)
	}
	return &msg, nil
}

// Length 积压任务数
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
