package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agripulse/agri_go_server/internal/pkg/queue"
)

type fakeReports struct {
	ids []int64
	err error
}

func (f *fakeReports) Generate(_ context.Context, reportID int64) error {
	f.ids = append(f.ids, reportID)
	return f.err
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) Send(template, to string, _ map[string]string) error {
	f.sent = append(f.sent, template+":"+to)
	return f.err
}

func setupProcessor(t *testing.T) (*Processor, *fakeReports, *fakeMailer, *queue.Queue, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	reports := &fakeReports{}
	mailer := &fakeMailer{}
	jobQueue := queue.NewQueue(client, "test_jobs")

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return NewProcessor(reports, mailer, jobQueue), reports, mailer, jobQueue, cleanup
}

func TestProcessor_Process(t *testing.T) {
	processor, reports, mailer, _, cleanup := setupProcessor(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name    string
		msg     *queue.JobMessage
		wantErr bool
	}{
		{"report", &queue.JobMessage{Type: queue.JobReport, AccountID: 1, ReportID: 7}, false},
		{"report without id", &queue.JobMessage{Type: queue.JobReport}, true},
		{"email", &queue.JobMessage{Type: queue.JobEmail, Email: &queue.EmailJob{Template: queue.TemplateReceipt, To: "ada@example.com"}}, false},
		{"email without recipient", &queue.JobMessage{Type: queue.JobEmail, Email: &queue.EmailJob{Template: queue.TemplateReceipt}}, true},
		{"unknown", &queue.JobMessage{Type: "analysis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := processor.Process(ctx, tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Equal(t, []int64{7}, reports.ids)
	assert.Equal(t, []string{"receipt:ada@example.com"}, mailer.sent)
}

func TestProcessor_Process_UnknownJob(t *testing.T) {
	processor, _, _, _, cleanup := setupProcessor(t)
	defer cleanup()

	err := processor.Process(context.Background(), &queue.JobMessage{Type: "analysis"})
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestProcessor_EmailRetry(t *testing.T) {
	processor, _, mailer, jobQueue, cleanup := setupProcessor(t)
	defer cleanup()
	ctx := context.Background()

	mailer.err = errors.New("421 service not available")
	msg := &queue.JobMessage{Type: queue.JobEmail, Email: &queue.EmailJob{Template: queue.TemplateContactAck, To: "ada@example.com"}}

	require.Error(t, processor.Process(ctx, msg))
	retry, err := jobQueue.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 1, retry.Attempt)

	require.Error(t, processor.Process(ctx, retry))
	retry, err = jobQueue.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 2, retry.Attempt)

	// 第三次失败后不再入队
	require.Error(t, processor.Process(ctx, retry))
	length, err := jobQueue.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
	assert.Len(t, mailer.sent, 3)
}
