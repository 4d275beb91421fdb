package email

import (
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/agripulse/agri_go_server/config"
)

// 模板名与 queue 中的邮件模板保持一致
const (
	TemplateVerification = "verification"
	TemplateReceipt      = "receipt"
	TemplateContactAdmin = "contact_admin"
	TemplateContactAck   = "contact_ack"
	TemplateReportReady  = "report_ready"
)

var ErrUnknownTemplate = errors.New("unknown email template")

// SendFunc 与 smtp.SendMail 签名一致，测试时替换
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	cfg         *config.EmailConfig
	frontendURL string
	send        SendFunc
}

func NewService(cfg *config.EmailConfig, frontendURL string) *Service {
	return &Service{cfg: cfg, frontendURL: strings.TrimRight(frontendURL, "/"), send: smtp.SendMail}
}

// WithSender 替换发送实现
func (s *Service) WithSender(send SendFunc) *Service {
	s.send = send
	return s
}

// AdminEmail 运营通知收件人，未配置时使用发件账号
func (s *Service) AdminEmail() string {
	if s.cfg.AdminEmail != "" {
		return s.cfg.AdminEmail
	}
	return s.cfg.Username
}

// Send 渲染模板并发送
func (s *Service) Send(template, to string, data map[string]string) error {
	subject, body, err := s.Render(template, data)
	if err != nil {
		return err
	}
	return s.sendHTML(to, subject, body)
}

// Render 返回邮件主题与 HTML 正文，数据均做转义
func (s *Service) Render(template string, data map[string]string) (string, string, error) {
	v := func(key string) string {
		return html.EscapeString(data[key])
	}

	switch template {
	case TemplateVerification:
		link := fmt.Sprintf("%s/verify-email?code=%s", s.frontendURL, v("code"))
		return "AgriPulse - Verify Your Email", layout("Verify your email", fmt.Sprintf(`
        <p>Dear %s,</p>
        <p>Thanks for creating an AgriPulse account. Please confirm your email address:</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #15803d; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Verify Email</a>
        </div>
        <p>Or use this code: <strong>%s</strong></p>
        <p>The link is valid for 24 hours.</p>`, v("name"), link, v("code"))), nil

	case TemplateReceipt:
		return "AgriPulse - Payment Confirmed", layout("Payment confirmed", fmt.Sprintf(`
        <p>Dear %s,</p>
        <p>Your payment has been confirmed and your <strong>%s</strong> plan is now active.</p>
        <ul>
            <li>Reference: %s</li>
            <li>Amount: %s %s</li>
            <li>Method: %s</li>
        </ul>`, v("name"), v("plan"), v("reference"), v("currency"), v("amount"), v("method"))), nil

	case TemplateContactAdmin:
		message := v("message")
		if message == "" {
			message = "No additional message provided"
		}
		return "New AgriPulse Access Request - " + headerSafe(data["organization"]), layout("New Access Request", fmt.Sprintf(`
        <p><strong>Name:</strong> %s</p>
        <p><strong>Email:</strong> %s</p>
        <p><strong>Organization:</strong> %s</p>
        <p><strong>Use Case:</strong> %s</p>
        <p><strong>Message:</strong></p>
        <p>%s</p>
        <p><em>Submitted on: %s</em></p>`, v("name"), v("email"), v("organization"), v("use_case"), message, v("submitted_at"))), nil

	case TemplateContactAck:
		return "AgriPulse - We Received Your Request", layout("Thank You for Your Interest in AgriPulse!", fmt.Sprintf(`
        <p>Dear %s,</p>
        <p>We have received your access request and will review it within 24 hours.</p>
        <ul>
            <li>Organization: %s</li>
            <li>Use Case: %s</li>
        </ul>
        <p>Best regards,<br>The AgriPulse Team</p>`, v("name"), v("organization"), v("use_case"))), nil

	case TemplateReportReady:
		link := fmt.Sprintf("%s/reports/%s", s.frontendURL, v("report_id"))
		return "AgriPulse - Your Report Is Ready", layout("Report ready", fmt.Sprintf(`
        <p>Dear %s,</p>
        <p>Your report <strong>%s</strong> has been generated.</p>
        <p><a href="%s">Download it from your dashboard</a>.</p>`, v("name"), v("title"), link)), nil
	}

	return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
}

func headerSafe(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

func layout(title, content string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #15803d;">%s</h2>
%s
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, title, content)
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	headers := [][2]string{
		{"From", s.cfg.From},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String()))
}
