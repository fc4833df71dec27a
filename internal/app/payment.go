package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/wallet"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const deadlineSweepBatch = 100

// providerEvent is the payment provider's webhook payload shape
type providerEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"` // kobo
		Status    string `json:"status"`
	} `json:"data"`
}

// PaymentService implements payment verification, the provider webhook and
// the deadline sweep.
type PaymentService struct {
	paymentRepo outbound.PaymentRepository
	fundingRepo outbound.FundingRepository
	vendorRepo  outbound.VendorRepository
	walletRepo  outbound.WalletRepository
	wallets     inbound.WalletService
	notifier    outbound.Notifier
	audit       outbound.AuditLog
	effects     *EffectRunner
	secret      []byte
	logger      zerolog.Logger
	now         func() time.Time
}

type PaymentServiceParams struct {
	PaymentRepo outbound.PaymentRepository
	FundingRepo outbound.FundingRepository
	VendorRepo  outbound.VendorRepository
	WalletRepo  outbound.WalletRepository
	Wallets     inbound.WalletService
	Notifier    outbound.Notifier
	Audit       outbound.AuditLog
	Effects     *EffectRunner
	Logger      zerolog.Logger

	// WebhookSecret signs provider webhook payloads (HMAC-SHA512)
	WebhookSecret string
}

// NewPaymentService creates a new payment service
func NewPaymentService(params PaymentServiceParams) *PaymentService {
	return &PaymentService{
		paymentRepo: params.PaymentRepo,
		fundingRepo: params.FundingRepo,
		vendorRepo:  params.VendorRepo,
		walletRepo:  params.WalletRepo,
		wallets:     params.Wallets,
		notifier:    params.Notifier,
		audit:       params.Audit,
		effects:     params.Effects,
		secret:      []byte(params.WebhookSecret),
		logger:      params.Logger.With().Str("component", "payment_service").Logger(),
		now:         time.Now,
	}
}

// GetPayment returns the payment together with its time-derived deadline
// state.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, payment.DeadlineState, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, "", err
	}
	return p, p.State(s.now()), nil
}

// DecidePayment records a finance officer's verify/reject decision. The
// decision is terminal: a decided payment cannot be decided again.
func (s *PaymentService) DecidePayment(ctx context.Context, req inbound.DecidePaymentRequest) (*payment.Payment, error) {
	p, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Final() {
		return nil, shared.ErrPaymentAlreadyFinal
	}

	now := s.now()
	before := string(p.Status)

	switch req.Action {
	case "verify":
		p.Verify(req.FinanceOfficerID, now)
	case "reject":
		p.Reject(req.FinanceOfficerID, now)
	default:
		return nil, shared.ErrUnknownPaymentAction
	}

	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, req.FinanceOfficerID.String(), "payment."+req.Action, p.ID, map[string]interface{}{
		"status": before,
	}, map[string]interface{}{
		"status":  string(p.Status),
		"comment": req.Comment,
	})

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("action", req.Action).
		Str("finance_officer_id", req.FinanceOfficerID.String()).
		Msg("Payment decided")

	s.effects.Submit("notify_payment_decision", 0, func(ctx context.Context) error {
		v, err := s.vendorRepo.GetByID(ctx, p.VendorID)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("Your payment %s has been %s.", p.Reference, p.Status)
		return s.notifier.SendSMS(ctx, v.Phone, msg)
	})

	return p, nil
}

// VerifySignature checks an HMAC-SHA512 hex signature over the raw webhook
// body.
func (s *PaymentService) VerifySignature(rawBody []byte, signature string) bool {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleProviderEvent consumes a signed payment-provider webhook. A bad
// signature or amount mismatch rejects the whole event. On charge.success
// with an exact kobo-precision amount match the matching auction payment is
// verified, or the matching funding request is completed and the vendor's
// escrow wallet credited.
func (s *PaymentService) HandleProviderEvent(ctx context.Context, rawBody []byte, signature string) error {
	if !s.VerifySignature(rawBody, signature) {
		s.logger.Warn().Msg("Webhook signature mismatch")
		return shared.ErrWebhookSignature
	}

	var evt providerEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	if evt.Event != "charge.success" {
		s.logger.Debug().Str("event", evt.Event).Msg("Ignoring provider event")
		return nil
	}

	if p, err := s.paymentRepo.GetByReference(ctx, evt.Data.Reference); err == nil {
		return s.settleAuctionPayment(ctx, p, evt.Data.Amount)
	} else if err != shared.ErrPaymentNotFound {
		return err
	}

	fr, err := s.fundingRepo.GetByReference(ctx, evt.Data.Reference)
	if err != nil {
		return err
	}
	return s.settleFunding(ctx, fr, evt.Data.Amount)
}

func (s *PaymentService) settleAuctionPayment(ctx context.Context, p *payment.Payment, amountKobo int64) error {
	if shared.Kobo(p.Amount) != amountKobo {
		s.logger.Warn().
			Str("payment_id", p.ID.String()).
			Int64("expected_kobo", shared.Kobo(p.Amount)).
			Int64("received_kobo", amountKobo).
			Msg("Webhook amount mismatch for auction payment")
		return shared.ErrWebhookAmountMismatch
	}
	if p.Final() {
		// Provider retried delivery; the first one already settled it.
		return nil
	}

	now := s.now()
	p.Verify(uuid.Nil, now)
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return err
	}

	s.recordAudit(ctx, "provider", "payment.verify", p.ID,
		map[string]interface{}{"status": string(payment.StatusPending)},
		map[string]interface{}{"status": string(p.Status)},
	)

	s.logger.Info().Str("payment_id", p.ID.String()).Msg("Auction payment verified via provider webhook")
	return nil
}

func (s *PaymentService) settleFunding(ctx context.Context, fr *wallet.FundingRequest, amountKobo int64) error {
	if shared.Kobo(fr.Amount) != amountKobo {
		s.logger.Warn().
			Str("reference", fr.Reference).
			Int64("expected_kobo", shared.Kobo(fr.Amount)).
			Int64("received_kobo", amountKobo).
			Msg("Webhook amount mismatch for funding request")
		return shared.ErrWebhookAmountMismatch
	}
	if fr.Status == wallet.FundingCompleted {
		return nil
	}

	if err := s.fundingRepo.UpdateStatus(ctx, fr.ID, wallet.FundingCompleted); err != nil {
		return err
	}

	w, err := s.walletRepo.GetByVendorID(ctx, fr.VendorID)
	if err != nil {
		return fmt.Errorf("load wallet for funding credit: %w", err)
	}
	if _, err := s.wallets.Credit(ctx, w.ID, fr.Amount, fr.Reference, "wallet funding via provider"); err != nil {
		return fmt.Errorf("credit wallet for funding %s: %w", fr.Reference, err)
	}

	s.logger.Info().
		Str("reference", fr.Reference).
		Float64("amount", fr.Amount).
		Msg("Funding settled and wallet credited")
	return nil
}

// DeadlineSweep sends due reminders and processes forfeitures. Stored
// markers keep both halves idempotent across overlapping sweeps; the
// deadline state itself stays recomputed on read.
func (s *PaymentService) DeadlineSweep(ctx context.Context, now time.Time) error {
	if err := s.sweepReminders(ctx, now); err != nil {
		return err
	}
	return s.sweepForfeitures(ctx, now)
}

func (s *PaymentService) sweepReminders(ctx context.Context, now time.Time) error {
	due, err := s.paymentRepo.ListUnreminded(ctx, now, deadlineSweepBatch)
	if err != nil {
		return fmt.Errorf("list unreminded payments: %w", err)
	}
	for _, p := range due {
		if p.State(now) != payment.StateReminderSent {
			continue
		}
		if err := s.paymentRepo.MarkReminded(ctx, p.ID); err != nil {
			s.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Failed to mark payment reminded")
			continue
		}
		pay := p
		s.effects.Submit("payment_reminder", 0, func(ctx context.Context) error {
			v, err := s.vendorRepo.GetByID(ctx, pay.VendorID)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf(
				"Reminder: payment %s of ₦%.2f is due by %s.",
				pay.Reference, pay.Amount, pay.Deadline.Format(time.RFC1123),
			)
			if err := s.notifier.SendSMS(ctx, v.Phone, msg); err != nil {
				return err
			}
			return s.notifier.SendEmail(ctx, v.Email, "Payment reminder", msg)
		})
	}
	return nil
}

func (s *PaymentService) sweepForfeitures(ctx context.Context, now time.Time) error {
	due, err := s.paymentRepo.ListUnforfeited(ctx, now, deadlineSweepBatch)
	if err != nil {
		return fmt.Errorf("list forfeitable payments: %w", err)
	}
	for _, p := range due {
		if p.State(now) != payment.StateForfeited {
			continue
		}
		if err := s.forfeit(ctx, p, now); err != nil {
			s.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Failed to process forfeiture")
		}
	}
	return nil
}

// forfeit handles a payment 48h past its deadline: the vendor is suspended
// for seven days and the funds frozen at closure are released back to their
// available pool.
func (s *PaymentService) forfeit(ctx context.Context, p *payment.Payment, now time.Time) error {
	if err := s.paymentRepo.MarkForfeited(ctx, p.ID); err != nil {
		return err
	}

	v, err := s.vendorRepo.GetByID(ctx, p.VendorID)
	if err != nil {
		return fmt.Errorf("load vendor for forfeiture: %w", err)
	}
	v.Suspend(now)
	if err := s.vendorRepo.Suspend(ctx, v.ID, *v.SuspendedUntil); err != nil {
		return fmt.Errorf("suspend vendor: %w", err)
	}

	if w, err := s.walletRepo.GetByVendorID(ctx, p.VendorID); err == nil {
		if _, err := s.wallets.Unfreeze(ctx, w.ID, p.Amount, p.Reference, "released on forfeiture"); err != nil {
			s.logger.Warn().Err(err).
				Str("wallet_id", w.ID.String()).
				Str("payment_id", p.ID.String()).
				Msg("Failed to unfreeze forfeited funds")
		}
	}

	s.recordAudit(ctx, "system", "payment.forfeited", p.ID,
		map[string]interface{}{"deadline": p.Deadline},
		map[string]interface{}{"suspended_until": *v.SuspendedUntil},
	)

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("vendor_id", v.ID.String()).
		Time("suspended_until", *v.SuspendedUntil).
		Msg("Payment forfeited, vendor suspended")

	s.effects.Submit("notify_forfeiture", 0, func(ctx context.Context) error {
		msg := fmt.Sprintf(
			"Payment %s was not received in time. Your auction win is forfeited and bidding is suspended until %s.",
			p.Reference, v.SuspendedUntil.Format(time.RFC1123),
		)
		return s.notifier.SendSMS(ctx, v.Phone, msg)
	})

	return nil
}

func (s *PaymentService) recordAudit(ctx context.Context, actor, action string, entityID uuid.UUID, before, after map[string]interface{}) {
	err := s.audit.Record(ctx, outbound.AuditEntry{
		Actor:    actor,
		Action:   action,
		Entity:   "payment",
		EntityID: entityID.String(),
		Before:   before,
		After:    after,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("Failed to record payment audit entry")
	}
}
