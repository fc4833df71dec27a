package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salvage-auction-service/internal/domain/auction"
	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClosureScheduler registers auctions for the expiration sweep
type ClosureScheduler interface {
	ScheduleClosure(auctionID uuid.UUID, endTime time.Time) error
}

// AuctionService implements the auction lifecycle use cases
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	bidRepo     outbound.BidRepository
	caseRepo    outbound.CaseRepository
	vendorRepo  outbound.VendorRepository
	paymentRepo outbound.PaymentRepository
	wallets     inbound.WalletService
	walletRepo  outbound.WalletRepository
	broadcaster outbound.Broadcaster
	notifier    outbound.Notifier
	audit       outbound.AuditLog
	scheduler   ClosureScheduler
	effects     *EffectRunner
	logger      zerolog.Logger
	now         func() time.Time
	paymentURL  string
}

type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	CaseRepo    outbound.CaseRepository
	VendorRepo  outbound.VendorRepository
	PaymentRepo outbound.PaymentRepository
	Wallets     inbound.WalletService
	WalletRepo  outbound.WalletRepository
	Broadcaster outbound.Broadcaster
	Notifier    outbound.Notifier
	Audit       outbound.AuditLog
	Scheduler   ClosureScheduler
	Effects     *EffectRunner
	Logger      zerolog.Logger

	// PaymentURL is the base link sent to winners for settling
	PaymentURL string
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		caseRepo:    params.CaseRepo,
		vendorRepo:  params.VendorRepo,
		paymentRepo: params.PaymentRepo,
		wallets:     params.Wallets,
		walletRepo:  params.WalletRepo,
		broadcaster: params.Broadcaster,
		notifier:    params.Notifier,
		audit:       params.Audit,
		scheduler:   params.Scheduler,
		effects:     params.Effects,
		logger:      params.Logger.With().Str("component", "auction_service").Logger(),
		now:         time.Now,
		paymentURL:  params.PaymentURL,
	}
}

// SetScheduler wires the closure scheduler after construction. The scheduler
// itself needs the service to end auctions, so one side is set late.
func (s *AuctionService) SetScheduler(scheduler ClosureScheduler) {
	s.scheduler = scheduler
}

// CreateAuction opens bidding for an approved salvage case
func (s *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	s.logger.Info().
		Str("case_id", req.CaseID.String()).
		Time("start_time", req.StartTime).
		Time("end_time", req.EndTime).
		Float64("min_increment", req.MinIncrement).
		Msg("Attempting to create auction")

	salvageCase, err := s.caseRepo.GetByID(ctx, req.CaseID)
	if err != nil {
		s.logger.Error().Err(err).Str("case_id", req.CaseID.String()).Msg("Case not found")
		return nil, shared.ErrCaseNotFound
	}

	if !req.EndTime.After(req.StartTime) {
		return nil, shared.ErrInvalidEndTime
	}
	if req.MinIncrement <= 0 {
		return nil, shared.ErrInvalidIncrement
	}

	active, err := s.auctionRepo.GetActiveByCaseID(ctx, req.CaseID)
	if err != nil {
		s.logger.Error().Err(err).Str("case_id", req.CaseID.String()).Msg("Failed to check for open auctions")
		return nil, err
	}
	if len(active) > 0 {
		s.logger.Warn().Str("case_id", req.CaseID.String()).Msg("Case already has an open auction")
		return nil, shared.ErrCaseAlreadyOnAuction
	}

	now := s.now()
	a := &auction.Auction{
		ID:              uuid.New(),
		CaseID:          salvageCase.ID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		OriginalEndTime: req.EndTime,
		MinIncrement:    req.MinIncrement,
		Status:          auction.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.auctionRepo.Create(ctx, a); err != nil {
		s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to save auction")
		return nil, err
	}

	if err := s.caseRepo.UpdateStatus(ctx, salvageCase.ID, shared.CaseStatusOnAuction); err != nil {
		s.logger.Error().Err(err).Str("case_id", salvageCase.ID.String()).Msg("Failed to move case onto auction")
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleClosure(a.ID, a.EndTime); err != nil {
			// Closure sweep also scans the database for ended auctions, so a
			// missed schedule entry delays closure rather than losing it.
			s.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to schedule auction closure")
		}
	}

	s.logger.Info().Str("auction_id", a.ID.String()).Msg("Auction created")
	return a, nil
}

// GetAuction retrieves an auction by ID
func (s *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return s.auctionRepo.GetByID(ctx, auctionID)
}

// ListAuctions retrieves a page of auctions
func (s *AuctionService) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*auction.Auction, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}
	return s.auctionRepo.List(ctx, req.Status, req.Page, req.PageSize)
}

// EvaluateExtension applies the anti-sniping rule: a bid landing within five
// minutes of the end pushes the end time out by two minutes. The repository
// update is conditioned on the observed end time so concurrent checks extend
// at most once.
func (s *AuctionService) EvaluateExtension(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if !a.AcceptsBids() {
		return false, nil
	}

	now := s.now()
	if !auction.ShouldExtend(a.EndTime, now) {
		return false, nil
	}

	observedEnd := a.EndTime
	a.Extend(now)

	if err := s.auctionRepo.Extend(ctx, a.ID, a.EndTime, observedEnd); err != nil {
		if err == shared.ErrBidConflict {
			// Another bid already extended this window.
			return false, nil
		}
		return false, err
	}

	s.logger.Info().
		Str("auction_id", a.ID.String()).
		Time("new_end_time", a.EndTime).
		Int("extension_count", a.ExtensionCount).
		Msg("Auction extended")

	s.recordAudit(ctx, "system", "auction.extended", a.ID, map[string]interface{}{
		"end_time": observedEnd,
	}, map[string]interface{}{
		"end_time":        a.EndTime,
		"extension_count": a.ExtensionCount,
	})

	newEnd := a.EndTime
	s.effects.Submit("broadcast_extension", broadcastBudget, func(ctx context.Context) error {
		return s.broadcaster.Publish(ctx, a.ID, outbound.Event{
			Type:      outbound.EventTypeAuctionExtended,
			AuctionID: a.ID,
			Data: map[string]interface{}{
				"end_time":        newEnd,
				"extension_count": a.ExtensionCount,
			},
			Timestamp: now.Unix(),
		})
	})

	s.effects.Submit("notify_extension", 0, func(ctx context.Context) error {
		return s.notifyBidders(ctx, a.ID, fmt.Sprintf(
			"Auction %s has been extended to %s.", a.ID, newEnd.Format(time.RFC1123),
		))
	})

	return true, nil
}

// CloseAuction finalizes an ended auction: declares the winner, opens the
// 24-hour payment window and freezes the winner's escrow funds. Invoking it
// on an already-closed auction is a no-op that returns the existing result,
// which guards against double-invocation by an imprecise scheduler.
func (s *AuctionService) CloseAuction(ctx context.Context, auctionID uuid.UUID) (*shared.ClosureResult, error) {
	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if a.IsClosed() {
		return s.existingClosureResult(ctx, a)
	}
	if a.Status == auction.StatusCancelled {
		return nil, shared.ErrAuctionCancelled
	}

	// The conditional status flip is the gate: of any concurrent
	// invocations, only the one that transitions the row out of an
	// open status creates the payment and freezes funds. Losers see
	// zero rows affected and return the winner's result instead.
	if err := s.auctionRepo.Close(ctx, a.ID); err != nil {
		if err == shared.ErrAuctionNotFound {
			closed, gerr := s.auctionRepo.GetByID(ctx, auctionID)
			if gerr != nil {
				return nil, gerr
			}
			if closed.IsClosed() {
				return s.existingClosureResult(ctx, closed)
			}
			if closed.Status == auction.StatusCancelled {
				return nil, shared.ErrAuctionCancelled
			}
		}
		return nil, err
	}

	now := s.now()
	result := &shared.ClosureResult{
		AuctionID: a.ID,
		Status:    string(auction.StatusClosed),
	}

	if a.CurrentBidderID == nil {
		s.recordAudit(ctx, "system", "auction.closed", a.ID,
			map[string]interface{}{"status": string(a.Status)},
			map[string]interface{}{"status": string(auction.StatusClosed)},
		)
		s.logger.Info().Str("auction_id", a.ID.String()).Msg("Auction closed with no bids")
		s.broadcastClosure(a.ID, result, now)
		return result, nil
	}

	winner, err := s.vendorRepo.GetByID(ctx, *a.CurrentBidderID)
	if err != nil {
		return nil, fmt.Errorf("load winning vendor: %w", err)
	}

	reference := NewReference("PAY")
	pay := &payment.Payment{
		ID:        uuid.New(),
		AuctionID: a.ID,
		VendorID:  winner.ID,
		Amount:    *a.CurrentBid,
		Method:    "escrow",
		Reference: reference,
		Status:    payment.StatusPending,
		Deadline:  now.Add(payment.PaymentWindow),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.paymentRepo.Create(ctx, pay); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := s.caseRepo.UpdateStatus(ctx, a.CaseID, shared.CaseStatusSold); err != nil {
		s.logger.Error().Err(err).Str("case_id", a.CaseID.String()).Msg("Failed to mark case sold")
	}

	s.freezeWinnerFunds(ctx, winner.ID, *a.CurrentBid, reference)

	s.recordAudit(ctx, "system", "auction.closed", a.ID,
		map[string]interface{}{"status": string(a.Status)},
		map[string]interface{}{
			"status":            string(auction.StatusClosed),
			"winner_id":         winner.ID.String(),
			"winning_amount":    *a.CurrentBid,
			"payment_reference": reference,
		},
	)

	result.WinnerID = &winner.ID
	result.WinningAmount = a.CurrentBid
	result.PaymentReference = &reference

	amount := *a.CurrentBid
	s.effects.Submit("notify_winner", 0, func(ctx context.Context) error {
		link := fmt.Sprintf("%s/%s", strings.TrimRight(s.paymentURL, "/"), reference)
		msg := fmt.Sprintf(
			"Congratulations! You won auction %s at ₦%.2f. Pay within 24 hours: %s",
			a.ID, amount, link,
		)
		if err := s.notifier.SendSMS(ctx, winner.Phone, msg); err != nil {
			s.logger.Error().Err(err).Str("vendor_id", winner.ID.String()).Msg("Failed to SMS auction winner")
		}
		return s.notifier.SendEmail(ctx, winner.Email, "You won a salvage auction", msg)
	})

	s.broadcastClosure(a.ID, result, now)

	s.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("winner_id", winner.ID.String()).
		Float64("winning_amount", amount).
		Msg("Auction closed with winner")

	return result, nil
}

// existingClosureResult rebuilds the closure outcome for an auction that is
// already closed, without creating anything.
func (s *AuctionService) existingClosureResult(ctx context.Context, a *auction.Auction) (*shared.ClosureResult, error) {
	result := &shared.ClosureResult{
		AuctionID: a.ID,
		Status:    string(a.Status),
		WinnerID:  a.CurrentBidderID,
	}
	if a.CurrentBidderID == nil {
		return result, nil
	}
	result.WinningAmount = a.CurrentBid

	pay, err := s.paymentRepo.GetByAuctionID(ctx, a.ID)
	if err != nil {
		if err == shared.ErrPaymentNotFound {
			return result, nil
		}
		return nil, err
	}
	result.PaymentReference = &pay.Reference
	return result, nil
}

// freezeWinnerFunds reserves the winning amount in the winner's escrow
// wallet. Insufficient funds do not fail the closure: the payment window
// still opens and the deadline sweep handles non-payment.
func (s *AuctionService) freezeWinnerFunds(ctx context.Context, vendorID uuid.UUID, amount float64, reference string) {
	w, err := s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		s.logger.Warn().Err(err).Str("vendor_id", vendorID.String()).Msg("Winner has no escrow wallet, skipping freeze")
		return
	}
	if _, err := s.wallets.Freeze(ctx, w.ID, amount, reference, "reserved for won auction"); err != nil {
		s.logger.Warn().Err(err).
			Str("wallet_id", w.ID.String()).
			Float64("amount", amount).
			Msg("Failed to freeze winner's escrow funds")
	}
}

func (s *AuctionService) broadcastClosure(auctionID uuid.UUID, result *shared.ClosureResult, now time.Time) {
	data := map[string]interface{}{"status": result.Status}
	if result.WinnerID != nil {
		data["winner_id"] = result.WinnerID.String()
	}
	if result.WinningAmount != nil {
		data["winning_amount"] = *result.WinningAmount
	}
	s.effects.Submit("broadcast_closure", broadcastBudget, func(ctx context.Context) error {
		return s.broadcaster.Publish(ctx, auctionID, outbound.Event{
			Type:      outbound.EventTypeAuctionClosed,
			AuctionID: auctionID,
			Data:      data,
			Timestamp: now.Unix(),
		})
	})
}

// notifyBidders sends an SMS to every distinct vendor that has bid on the
// auction.
func (s *AuctionService) notifyBidders(ctx context.Context, auctionID uuid.UUID, message string) error {
	bidderIDs, err := s.bidRepo.ListBidderIDs(ctx, auctionID)
	if err != nil {
		return err
	}
	for _, id := range bidderIDs {
		v, err := s.vendorRepo.GetByID(ctx, id)
		if err != nil {
			s.logger.Error().Err(err).Str("vendor_id", id.String()).Msg("Failed to load bidder for notification")
			continue
		}
		if err := s.notifier.SendSMS(ctx, v.Phone, message); err != nil {
			s.logger.Error().Err(err).Str("vendor_id", id.String()).Msg("Failed to SMS bidder")
		}
	}
	return nil
}

func (s *AuctionService) recordAudit(ctx context.Context, actor, action string, entityID uuid.UUID, before, after map[string]interface{}) {
	err := s.audit.Record(ctx, outbound.AuditEntry{
		Actor:    actor,
		Action:   action,
		Entity:   "auction",
		EntityID: entityID.String(),
		Before:   before,
		After:    after,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("Failed to record audit entry")
	}
}
