package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agripulse/agri_go_server/config"
	"github.com/agripulse/agri_go_server/internal/model/dto"
	"github.com/agripulse/agri_go_server/internal/pkg/queue"
)

var ErrContactUnavailable = errors.New("failed to submit request, please try again")

type ContactService struct {
	jobQueue *queue.Queue
	cfg      *config.Config
}

func NewContactService(jobQueue *queue.Queue, cfg *config.Config) *ContactService {
	return &ContactService{jobQueue: jobQueue, cfg: cfg}
}

// Submit 申请访问：通知运营并给用户发送确认邮件
func (s *ContactService) Submit(ctx context.Context, req *dto.ContactRequest) error {
	data := map[string]string{
		"name":         strings.TrimSpace(req.Name),
		"email":        strings.ToLower(strings.TrimSpace(req.Email)),
		"organization": strings.TrimSpace(req.Organization),
		"use_case":     req.UseCase,
		"message":      strings.TrimSpace(req.Message),
		"submitted_at": time.Now().UTC().Format(time.RFC1123),
	}

	adminEmail := s.cfg.Email.AdminEmail
	if adminEmail == "" {
		adminEmail = s.cfg.Email.Username
	}

	jobs := []*queue.EmailJob{
		{Template: queue.TemplateContactAdmin, To: adminEmail, Data: data},
		{Template: queue.TemplateContactAck, To: data["email"], Data: data},
	}
	for _, job := range jobs {
		if err := s.jobQueue.PushEmail(ctx, job); err != nil {
			return fmt.Errorf("%w: %v", ErrContactUnavailable, err)
		}
	}
	return nil
}

// Info 公开联系方式
func (s *ContactService) Info() *dto.ContactInfo {
	return &dto.ContactInfo{
		Email:  defaultString(s.cfg.Email.AdminEmail, "agripulse720@gmail.com"),
		Phone:  "+234 9115434458",
		Office: "Abuja, Nigeria - Financial District",
		Hours:  "Mon-Fri 9AM-5PM WAT",
	}
}
