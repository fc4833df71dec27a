package notifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// EmailClient delivers email over SMTP
type EmailClient struct {
	dialer *gomail.Dialer
	from   string
	logger zerolog.Logger
}

type EmailClientParams struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Logger   zerolog.Logger
}

// NewEmailClient creates a new email client
func NewEmailClient(params EmailClientParams) *EmailClient {
	return &EmailClient{
		dialer: gomail.NewDialer(params.Host, params.Port, params.Username, params.Password),
		from:   params.From,
		logger: params.Logger.With().Str("component", "email_client").Logger(),
	}
}

// SendEmail sends a single HTML email. The context is honored before the
// dial; gomail itself does not take one.
func (c *EmailClient) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := c.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug().Str("to", to).Str("subject", subject).Msg("Email sent")
	return nil
}
