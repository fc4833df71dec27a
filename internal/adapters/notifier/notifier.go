package notifier

import "context"

// Notifier combines the SMS and email clients behind one outbound port
type Notifier struct {
	sms   *SMSClient
	email *EmailClient
}

// New creates a notifier from the two transport clients
func New(sms *SMSClient, email *EmailClient) *Notifier {
	return &Notifier{sms: sms, email: email}
}

func (n *Notifier) SendSMS(ctx context.Context, phone, message string) error {
	return n.sms.SendSMS(ctx, phone, message)
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, body string) error {
	return n.email.SendEmail(ctx, to, subject, body)
}
