package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"upms-teamup/backend/config"
)

const (
	defaultHost = "https://api.sendgrid.com"
	sendPath    = "/v3/mail/send"
)

// Message 待发送邮件
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer 邮件投递接口
// 投递失败只影响通知本身，不回滚任何业务状态
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New 根据配置创建 Mailer
func New(cfg *config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Driver == "sendgrid" {
		return NewSendgridMailer(cfg, defaultHost)
	}
	return NewLogMailer(logger)
}

// ── SendGrid ──

// SendgridMailer 通过 SendGrid v3 API 投递
type SendgridMailer struct {
	key  string
	host string
	from *sgmail.Email
}

// NewSendgridMailer 创建 SendGrid 投递器，host 为空时使用官方地址
func NewSendgridMailer(cfg *config.MailConfig, host string) *SendgridMailer {
	if host == "" {
		host = defaultHost
	}
	return &SendgridMailer{
		key:  cfg.SendgridAPIKey,
		host: host,
		from: sgmail.NewEmail(cfg.FromName, cfg.From),
	}
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := sgmail.NewEmail(msg.ToName, msg.To)
	body := sgmail.NewSingleEmail(m.from, msg.Subject, to, msg.Text, msg.HTML)

	req := sendgrid.GetRequest(m.key, sendPath, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(body)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("发送邮件失败: status=%d body=%s", res.StatusCode, res.Body)
	}
	return nil
}

// ── 日志投递（开发环境） ──

// LogMailer 只把邮件内容写入日志
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer 创建日志投递器
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("邮件（未实际投递）",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
