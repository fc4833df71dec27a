package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// SMSClient delivers SMS through the provider's JSON API
type SMSClient struct {
	baseURL  string
	apiKey   string
	senderID string
	client   *http.Client
	logger   zerolog.Logger
}

type SMSClientParams struct {
	BaseURL  string
	APIKey   string
	SenderID string
	Logger   zerolog.Logger
}

// NewSMSClient creates a new SMS client
func NewSMSClient(params SMSClientParams) *SMSClient {
	return &SMSClient{
		baseURL:  params.BaseURL,
		apiKey:   params.APIKey,
		senderID: params.SenderID,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   params.Logger.With().Str("component", "sms_client").Logger(),
	}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// SendSMS posts a single message to the provider. Non-2xx responses are
// returned as errors so callers can log and move on.
func (c *SMSClient) SendSMS(ctx context.Context, phone, message string) error {
	payload, err := json.Marshal(smsRequest{To: phone, From: c.senderID, Message: message})
	if err != nil {
		return fmt.Errorf("failed to encode SMS payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("SMS provider returned status %d", resp.StatusCode)
	}

	c.logger.Debug().Str("phone", phone).Msg("SMS sent")
	return nil
}
