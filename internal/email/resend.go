package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherly/server/internal/config"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// ResendMailer delivers mail through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
	logger zerolog.Logger
}

func newResendMailer(cfg config.EmailConfig, logger zerolog.Logger) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := validateAddress(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			m.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("email rate limit exceeded: %w", err)
		}
		return fmt.Errorf("resend API: %w", err)
	}

	m.logger.Info().
		Str("email_id", sent.Id).
		Str("to", to).
		Msg("email sent via Resend")
	return nil
}
