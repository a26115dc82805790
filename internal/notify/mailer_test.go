package notify

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"testing"

	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/service"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

type sent struct {
	mail *email.Email
	addr string
	auth bool
}

func recordingSender(out *[]sent, errs ...error) Sender {
	return func(mail *email.Email, addr string, auth smtp.Auth) error {
		*out = append(*out, sent{mail: mail, addr: addr, auth: auth != nil})
		if len(errs) == 0 {
			return nil
		}
		err := errs[0]
		errs = errs[1:]
		return err
	}
}

var testConfig = SmtpConfig{
	Server:       "smtp.example.com",
	EmailAddress: "scraper@example.com",
	Password:     "secret",
	To:           []string{"dealer@example.com"},
}

var testSummary = service.Summary{RunID: "run00001", Total: 3, Succeeded: 2, Failed: 1}

func TestSendSummary(t *testing.T) {
	attachment := filepath.Join(t.TempDir(), "reports.csv")
	require.NoError(t, os.WriteFile(attachment, []byte("vin\n"), 0644))

	var calls []sent
	m := NewMailer(testConfig, &telemetry.Recorder{}, WithCustomSender(recordingSender(&calls)))
	require.NoError(t, m.SendSummary(context.Background(), testSummary, "# Vehicle History Reports", attachment))

	require.Len(t, calls, 1)
	require.Equal(t, "smtp.example.com:587", calls[0].addr)
	require.True(t, calls[0].auth)
	require.Equal(t, "Vehicle history run run00001: 2 of 3 succeeded", calls[0].mail.Subject)
	require.Equal(t, []string{"dealer@example.com"}, calls[0].mail.To)
	require.Equal(t, "vhrscraper <scraper@example.com>", calls[0].mail.From)
	require.Equal(t, "# Vehicle History Reports", string(calls[0].mail.Text))
	require.Len(t, calls[0].mail.Attachments, 1)
	require.Equal(t, "reports.csv", calls[0].mail.Attachments[0].Filename)
}

func TestSendSummaryWithoutAuth(t *testing.T) {
	var calls []sent
	m := NewMailer(
		testConfig,
		&telemetry.Recorder{},
		WithCustomSender(recordingSender(&calls, errors.New("smtp: server doesn't support AUTH"))),
	)
	require.NoError(t, m.SendSummary(context.Background(), testSummary, "body"))
	require.Len(t, calls, 2)
	require.True(t, calls[0].auth)
	require.False(t, calls[1].auth)
}

func TestSendSummaryErrors(t *testing.T) {
	t.Run("send failure", func(t *testing.T) {
		var calls []sent
		rec := &telemetry.Recorder{}
		m := NewMailer(testConfig, rec, WithCustomSender(recordingSender(&calls, errors.New("connection refused"))))
		err := m.SendSummary(context.Background(), testSummary, "body")
		require.EqualError(t, err, "notify: send: connection refused")
		require.Len(t, calls, 1)
		require.True(t, rec.Has(telemetry.LevelBroken, report_mailer_send))
	})

	t.Run("missing attachment", func(t *testing.T) {
		var calls []sent
		m := NewMailer(testConfig, &telemetry.Recorder{}, WithCustomSender(recordingSender(&calls)))
		err := m.SendSummary(context.Background(), testSummary, "body", filepath.Join(t.TempDir(), "missing.csv"))
		require.Error(t, err)
		require.Empty(t, calls)
	})

	t.Run("no recipients", func(t *testing.T) {
		config := testConfig
		config.To = nil
		m := NewMailer(config, &telemetry.Recorder{})
		require.ErrorIs(t, m.SendSummary(context.Background(), testSummary, "body"), ErrNoRecipients)
	})
}

func TestSmtpConfig(t *testing.T) {
	require.True(t, testConfig.Enabled())
	require.False(t, SmtpConfig{Server: "smtp.example.com"}.Enabled())

	config := testConfig
	config.Port = 2525
	require.Equal(t, "smtp.example.com:2525", config.addr())
}
