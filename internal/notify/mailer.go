package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/service"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("vhrscraper/notify")

const (
	report_mailer_send = "mailer.send"
)

var ErrNoRecipients = errors.New("no recipients configured")

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Enabled reports whether enough is configured to send mail.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && c.EmailAddress != ""
}

func (c SmtpConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return fmt.Sprintf("%s:%d", c.Server, port)
}

// Sender delivers a message, it mirrors (*email.Email).Send.
type Sender = func(mail *email.Email, addr string, auth smtp.Auth) error

func defaultSender(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

type Mailer struct {
	config SmtpConfig
	send   Sender
	tel    telemetry.API
}

type MailerOption func(m *Mailer)

func WithCustomSender(send Sender) MailerOption {
	return func(m *Mailer) {
		m.send = send
	}
}

func NewMailer(config SmtpConfig, tel telemetry.API, options ...MailerOption) Mailer {
	assert.NotNil(tel)
	m := Mailer{
		config: config,
		send:   defaultSender,
		tel:    telemetry.NewScopedAPI("notify", tel),
	}
	for _, opt := range options {
		opt(&m)
	}
	return m
}

func Subject(summary service.Summary) string {
	return fmt.Sprintf(
		"Vehicle history run %s: %d of %d succeeded",
		summary.RunID, summary.Succeeded, summary.Total,
	)
}

// SendSummary mails the markdown rendering of a run with the given files
// attached. Servers that do not support AUTH are retried without it.
func (m Mailer) SendSummary(ctx context.Context, summary service.Summary, markdownBody string, attachments ...string) error {
	_, span := tracer.Start(ctx, "mailer:send-summary")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", summary.RunID))

	if len(m.config.To) == 0 {
		return ErrNoRecipients
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("vhrscraper <%s>", m.config.EmailAddress)
	mail.To = m.config.To
	mail.Subject = Subject(summary)
	mail.Text = []byte(markdownBody)

	for _, path := range attachments {
		_, err := mail.AttachFile(path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to attach file")
			return fmt.Errorf("notify: attach %s: %w", path, err)
		}
	}

	err := m.send(
		mail,
		m.config.addr(),
		smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, m.config.addr(), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		m.tel.ReportBroken(report_mailer_send, err, summary.RunID)
		return fmt.Errorf("notify: send: %w", err)
	}

	m.tel.ReportDebug("sent run summary", summary.RunID, len(m.config.To))
	return nil
}
