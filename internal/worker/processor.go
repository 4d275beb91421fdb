package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/agripulse/agri_go_server/internal/pkg/queue"
)

const maxEmailAttempts = 3

var ErrUnknownJob = errors.New("unknown job type")

// ReportGenerator 报表生成
type ReportGenerator interface {
	Generate(ctx context.Context, reportID int64) error
}

// Mailer 邮件发送
type Mailer interface {
	Send(template, to string, data map[string]string) error
}

// Processor 任务处理器
type Processor struct {
	reports  ReportGenerator
	mailer   Mailer
	jobQueue *queue.Queue
}

// NewProcessor 创建任务处理器，jobQueue 用于邮件失败重试
func NewProcessor(reports ReportGenerator, mailer Mailer, jobQueue *queue.Queue) *Processor {
	return &Processor{
		reports:  reports,
		mailer:   mailer,
		jobQueue: jobQueue,
	}
}

// Process 按任务类型分发
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	switch msg.Type {
	case queue.JobReport:
		if msg.ReportID == 0 {
			return fmt.Errorf("report job without report id")
		}
		log.Printf("Report %d: generating for account %d", msg.ReportID, msg.AccountID)
		return p.reports.Generate(ctx, msg.ReportID)

	case queue.JobEmail:
		return p.processEmail(ctx, msg)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.Type)
	}
}

func (p *Processor) processEmail(ctx context.Context, msg *queue.JobMessage) error {
	job := msg.Email
	if job == nil || job.To == "" {
		return fmt.Errorf("email job without recipient")
	}

	err := p.mailer.Send(job.Template, job.To, job.Data)
	if err == nil {
		return nil
	}

	// SMTP 临时失败重新入队，超过次数后放弃
	if msg.Attempt+1 < maxEmailAttempts && p.jobQueue != nil {
		attempt, pushErr := p.jobQueue.Requeue(ctx, msg)
		if pushErr != nil {
			log.Printf("Email %s to %s: requeue failed: %v", job.Template, job.To, pushErr)
		} else {
			log.Printf("Email %s to %s: attempt %d failed, requeued", job.Template, job.To, attempt)
		}
	}
	return fmt.Errorf("send %s email: %w", job.Template, err)
}
