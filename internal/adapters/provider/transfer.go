package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"salvage-auction-service/internal/domain/shared"
)

// TransferClient initiates settlement transfers through the payment
// provider's API. Amounts cross the wire in kobo.
type TransferClient struct {
	baseURL   string
	secretKey string
	recipient string
	client    *http.Client
	logger    zerolog.Logger
}

type TransferClientParams struct {
	BaseURL   string
	SecretKey string
	Recipient string
	Logger    zerolog.Logger
}

// NewTransferClient creates a new transfer client
func NewTransferClient(params TransferClientParams) *TransferClient {
	return &TransferClient{
		baseURL:   params.BaseURL,
		secretKey: params.SecretKey,
		recipient: params.Recipient,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    params.Logger.With().Str("component", "transfer_client").Logger(),
	}
}

type transferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// Transfer requests a transfer of amount naira to the settlement account.
// The reference makes retries idempotent on the provider side.
func (c *TransferClient) Transfer(ctx context.Context, reference string, amount float64) error {
	payload, err := json.Marshal(transferRequest{
		Source:    "balance",
		Amount:    shared.Kobo(amount),
		Recipient: c.recipient,
		Reference: reference,
		Reason:    "escrow settlement",
	})
	if err != nil {
		return fmt.Errorf("failed to encode transfer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfer", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request transfer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transfer provider returned status %d", resp.StatusCode)
	}

	c.logger.Info().Str("reference", reference).Float64("amount", amount).Msg("Settlement transfer requested")
	return nil
}
