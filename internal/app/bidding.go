package app

import (
	"context"
	"fmt"
	"time"

	"salvage-auction-service/internal/domain/bidding"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Advisory latency budgets for bid side effects. Overruns are logged by
// the effect runner, not enforced.
const (
	broadcastBudget = 2 * time.Second
	outbidBudget    = 5 * time.Second
)

// BidService implements the bid use cases
type BidService struct {
	bidRepo     outbound.BidRepository
	auctionRepo outbound.AuctionRepository
	vendorRepo  outbound.VendorRepository
	broadcaster outbound.Broadcaster
	notifier    outbound.Notifier
	otpStore    outbound.OTPStore
	audit       outbound.AuditLog
	auctions    inbound.AuctionService
	effects     *EffectRunner
	logger      zerolog.Logger
	now         func() time.Time
}

type BidServiceParams struct {
	BidRepo     outbound.BidRepository
	AuctionRepo outbound.AuctionRepository
	VendorRepo  outbound.VendorRepository
	Broadcaster outbound.Broadcaster
	Notifier    outbound.Notifier
	OTPStore    outbound.OTPStore
	Audit       outbound.AuditLog
	Auctions    inbound.AuctionService
	Effects     *EffectRunner
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		bidRepo:     params.BidRepo,
		auctionRepo: params.AuctionRepo,
		vendorRepo:  params.VendorRepo,
		broadcaster: params.Broadcaster,
		notifier:    params.Notifier,
		otpStore:    params.OTPStore,
		audit:       params.Audit,
		auctions:    params.Auctions,
		effects:     params.Effects,
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
		now:         time.Now,
	}
}

// PlaceBid validates and records a new bid on an auction. Business-rule
// failures come back as *shared.ValidationError; side effects (broadcast,
// extension check, outbid notification) run after commit and never fail
// the bid.
func (s *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bidding.Bid, error) {
	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("vendor_id", req.VendorID.String()).
		Float64("amount", req.Amount).
		Msg("Attempting to place bid")

	now := s.now()

	auction, err := s.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Auction not found")
		return nil, shared.ErrAuctionNotFound
	}

	vendor, err := s.vendorRepo.GetByID(ctx, req.VendorID)
	if err != nil {
		s.logger.Error().Err(err).Str("vendor_id", req.VendorID.String()).Msg("Vendor not found")
		return nil, shared.ErrVendorNotFound
	}

	if req.Amount < auction.MinimumNextBid() {
		s.logger.Warn().
			Str("auction_id", req.AuctionID.String()).
			Float64("amount", req.Amount).
			Float64("minimum_next_bid", auction.MinimumNextBid()).
			Msg("Bid amount below minimum next bid")
		return nil, shared.NewValidationError(
			fmt.Sprintf("bid must be at least ₦%.2f (current bid plus minimum increment)", auction.MinimumNextBid()),
		)
	}

	if !auction.AcceptsBids() {
		s.logger.Warn().
			Str("auction_id", req.AuctionID.String()).
			Str("status", string(auction.Status)).
			Msg("Auction not accepting bids")
		return nil, shared.NewValidationError("auction is not accepting bids")
	}

	if req.Amount > vendor.MaxBid() {
		s.logger.Warn().
			Str("vendor_id", req.VendorID.String()).
			Str("tier", string(vendor.Tier)).
			Float64("amount", req.Amount).
			Msg("Bid exceeds vendor tier ceiling")
		return nil, shared.NewValidationError(
			fmt.Sprintf("bid exceeds the ₦%.0f limit for your verification tier", vendor.MaxBid()),
		)
	}

	if vendor.Suspended(now) {
		s.logger.Warn().
			Str("vendor_id", req.VendorID.String()).
			Time("suspended_until", *vendor.SuspendedUntil).
			Msg("Suspended vendor attempted to bid")
		return nil, shared.NewValidationError("vendor is suspended from bidding")
	}

	ok, err := s.otpStore.Verify(ctx, vendor.Phone, req.OTPCode)
	if err != nil {
		s.logger.Error().Err(err).Str("vendor_id", req.VendorID.String()).Msg("OTP verification failed")
		return nil, err
	}
	if !ok {
		s.logger.Warn().Str("vendor_id", req.VendorID.String()).Msg("Invalid or expired OTP for bid")
		return nil, shared.NewValidationError("one-time code is invalid or expired")
	}

	previousBidderID := auction.CurrentBidderID
	previousBid := auction.CurrentBid

	newBid := &bidding.Bid{
		ID:          uuid.New(),
		AuctionID:   req.AuctionID,
		VendorID:    vendor.ID,
		Amount:      req.Amount,
		OTPVerified: true,
		IPAddress:   req.IPAddress,
		DeviceID:    req.DeviceID,
		CreatedAt:   now,
	}

	// Bid insert and auction update commit together, conditioned on the
	// current bid we validated against. A concurrent winner surfaces as
	// ErrBidConflict and the caller may retry with fresh state.
	if err := s.bidRepo.PlaceWithOCC(ctx, newBid, previousBid); err != nil {
		s.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to place bid")
		return nil, err
	}

	s.recordBidAudit(ctx, newBid, previousBid)

	s.effects.Submit("broadcast_bid", broadcastBudget, func(ctx context.Context) error {
		return s.broadcaster.Publish(ctx, newBid.AuctionID, outbound.Event{
			Type:      outbound.EventTypeBidPlaced,
			AuctionID: newBid.AuctionID,
			Data: map[string]interface{}{
				"bid_id":    newBid.ID,
				"vendor_id": newBid.VendorID,
				"amount":    newBid.Amount,
			},
			Timestamp: newBid.CreatedAt.Unix(),
		})
	})

	s.effects.Submit("evaluate_extension", 0, func(ctx context.Context) error {
		_, err := s.auctions.EvaluateExtension(ctx, newBid.AuctionID)
		return err
	})

	if previousBidderID != nil && *previousBidderID != vendor.ID {
		outbidID := *previousBidderID
		s.effects.Submit("notify_outbid", outbidBudget, func(ctx context.Context) error {
			return s.notifyOutbid(ctx, outbidID, newBid)
		})
	}

	s.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("auction_id", newBid.AuctionID.String()).
		Float64("amount", newBid.Amount).
		Msg("Bid placed successfully")

	return newBid, nil
}

func (s *BidService) notifyOutbid(ctx context.Context, vendorID uuid.UUID, winning *bidding.Bid) error {
	outbid, err := s.vendorRepo.GetByID(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("load outbid vendor: %w", err)
	}
	msg := fmt.Sprintf(
		"You have been outbid on auction %s. The leading bid is now ₦%.2f.",
		winning.AuctionID, winning.Amount,
	)
	return s.notifier.SendSMS(ctx, outbid.Phone, msg)
}

func (s *BidService) recordBidAudit(ctx context.Context, b *bidding.Bid, previousBid *float64) {
	entry := outbound.AuditEntry{
		Actor:    b.VendorID.String(),
		Action:   "bid.placed",
		Entity:   "auction",
		EntityID: b.AuctionID.String(),
		Before:   map[string]interface{}{},
		After: map[string]interface{}{
			"current_bid":    b.Amount,
			"current_bidder": b.VendorID.String(),
		},
	}
	if previousBid != nil {
		entry.Before["current_bid"] = *previousBid
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("bid_id", b.ID.String()).Msg("Failed to record bid audit entry")
	}
}

// GetBids retrieves bids for an auction
func (s *BidService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bidding.Bid, error) {
	return s.bidRepo.GetByAuctionID(ctx, auctionID)
}

// GetHighestBid retrieves the highest bid for an auction
func (s *BidService) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bidding.Bid, error) {
	return s.bidRepo.GetHighestBid(ctx, auctionID)
}
