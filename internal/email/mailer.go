// Package email sends plain-text notification mail. Callers that fire
// mail as a side effect of a state transition must treat a send failure
// as non-fatal.
package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/gatherly/server/internal/config"
	"github.com/rs/zerolog"
)

// Mailer delivers a plain-text message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New selects the mailer implementation from config.
func New(cfg config.EmailConfig, logger zerolog.Logger) (Mailer, error) {
	logger = logger.With().Str("component", "email").Logger()

	switch cfg.Provider {
	case "smtp":
		if err := validateAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender address: %w", err)
		}
		return &SMTPMailer{cfg: cfg, logger: logger}, nil
	case "resend":
		if err := validateAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender address: %w", err)
		}
		return newResendMailer(cfg, logger), nil
	case "disabled":
		return &DisabledMailer{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// DisabledMailer logs the message and reports success. Used in
// development and in tests.
type DisabledMailer struct {
	logger zerolog.Logger
}

func (m *DisabledMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Msg("email sending disabled, skipping")
	return nil
}

// validateAddress checks format and rejects header injection attempts.
func validateAddress(address string) error {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("address contains newline characters")
	}
	return nil
}
