package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/wallet"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	fundingRateLimit  = 5
	fundingRateWindow = 10 * time.Minute
)

// WalletService implements the escrow wallet use cases. Every ledger
// mutation is atomic per wallet, appends an immutable transaction record
// and invalidates the cached balance snapshot.
type WalletService struct {
	walletRepo  outbound.WalletRepository
	fundingRepo outbound.FundingRepository
	vendorRepo  outbound.VendorRepository
	cache       outbound.BalanceCache
	limiter     outbound.RateLimiter
	transfer    outbound.TransferClient
	audit       outbound.AuditLog
	effects     *EffectRunner
	logger      zerolog.Logger
	checkoutURL string
	now         func() time.Time
}

type WalletServiceParams struct {
	WalletRepo  outbound.WalletRepository
	FundingRepo outbound.FundingRepository
	VendorRepo  outbound.VendorRepository
	Cache       outbound.BalanceCache
	Limiter     outbound.RateLimiter
	Transfer    outbound.TransferClient
	Audit       outbound.AuditLog
	Effects     *EffectRunner
	Logger      zerolog.Logger

	// CheckoutURL is the payment provider's hosted checkout base
	CheckoutURL string
}

// NewWalletService creates a new wallet service
func NewWalletService(params WalletServiceParams) *WalletService {
	return &WalletService{
		walletRepo:  params.WalletRepo,
		fundingRepo: params.FundingRepo,
		vendorRepo:  params.VendorRepo,
		cache:       params.Cache,
		limiter:     params.Limiter,
		transfer:    params.Transfer,
		audit:       params.Audit,
		effects:     params.Effects,
		logger:      params.Logger.With().Str("component", "wallet_service").Logger(),
		checkoutURL: params.CheckoutURL,
		now:         time.Now,
	}
}

// FundWallet starts a provider checkout for an escrow top-up. The wallet is
// provisioned lazily on the vendor's first funding request. Amounts outside
// the allowed range are rejected before anything is written.
func (s *WalletService) FundWallet(ctx context.Context, req inbound.FundWalletRequest) (*inbound.FundWalletResponse, error) {
	if !wallet.ValidFundingAmount(req.Amount) {
		s.logger.Warn().
			Str("vendor_id", req.VendorID.String()).
			Float64("amount", req.Amount).
			Msg("Funding amount outside allowed range")
		return nil, shared.ErrFundingOutOfRange
	}

	if s.limiter != nil {
		key := "fund:" + req.VendorID.String()
		allowed, err := s.limiter.Allow(ctx, key, fundingRateLimit, fundingRateWindow)
		if err != nil {
			s.logger.Error().Err(err).Str("vendor_id", req.VendorID.String()).Msg("Funding rate limit check failed")
		} else if !allowed {
			return nil, shared.ErrRateLimited
		}
	}

	if _, err := s.vendorRepo.GetByID(ctx, req.VendorID); err != nil {
		return nil, shared.ErrVendorNotFound
	}

	if _, err := s.walletRepo.GetByVendorID(ctx, req.VendorID); err != nil {
		if err != shared.ErrWalletNotFound {
			return nil, err
		}
		if _, err := s.walletRepo.CreateForVendor(ctx, req.VendorID); err != nil {
			return nil, fmt.Errorf("provision wallet: %w", err)
		}
		s.logger.Info().Str("vendor_id", req.VendorID.String()).Msg("Escrow wallet provisioned on first funding request")
	}

	now := s.now()
	fr := &wallet.FundingRequest{
		ID:        uuid.New(),
		VendorID:  req.VendorID,
		Reference: NewReference("FND"),
		Amount:    req.Amount,
		Status:    wallet.FundingInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.fundingRepo.Create(ctx, fr); err != nil {
		return nil, fmt.Errorf("create funding request: %w", err)
	}

	s.logger.Info().
		Str("vendor_id", req.VendorID.String()).
		Str("reference", fr.Reference).
		Float64("amount", req.Amount).
		Msg("Funding request initiated")

	return &inbound.FundWalletResponse{
		Reference:        fr.Reference,
		AuthorizationURL: fmt.Sprintf("%s?reference=%s", strings.TrimRight(s.checkoutURL, "/"), fr.Reference),
	}, nil
}

// Balance returns the wallet's balance snapshot, serving from cache when a
// fresh snapshot exists.
func (s *WalletService) Balance(ctx context.Context, walletID uuid.UUID) (*wallet.Wallet, error) {
	if balance, available, frozen, ok := s.cache.Get(ctx, walletID); ok {
		return &wallet.Wallet{
			ID:        walletID,
			Balance:   balance,
			Available: available,
			Frozen:    frozen,
		}, nil
	}

	w, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, walletID, w.Balance, w.Available, w.Frozen); err != nil {
		s.logger.Error().Err(err).Str("wallet_id", walletID.String()).Msg("Failed to cache wallet balance")
	}
	return w, nil
}

// Credit adds confirmed external funds to the wallet
func (s *WalletService) Credit(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error) {
	return s.apply(ctx, walletID, wallet.TxCredit, amount, reference, description, func(w *wallet.Wallet) error {
		return w.Credit(amount)
	})
}

// Freeze reserves available funds against a won auction
func (s *WalletService) Freeze(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error) {
	return s.apply(ctx, walletID, wallet.TxFreeze, amount, reference, description, func(w *wallet.Wallet) error {
		return w.Freeze(amount)
	})
}

// Unfreeze reverses a freeze, returning funds to the available pool
func (s *WalletService) Unfreeze(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error) {
	return s.apply(ctx, walletID, wallet.TxUnfreeze, amount, reference, description, func(w *wallet.Wallet) error {
		return w.Unfreeze(amount)
	})
}

// Debit releases frozen funds out of escrow and requests the external
// transfer to the platform's settlement account.
func (s *WalletService) Debit(ctx context.Context, walletID uuid.UUID, amount float64, reference, description string) (*wallet.Transaction, error) {
	tx, err := s.apply(ctx, walletID, wallet.TxDebit, amount, reference, description, func(w *wallet.Wallet) error {
		return w.Debit(amount)
	})
	if err != nil {
		return nil, err
	}

	s.effects.Submit("escrow_transfer", 0, func(ctx context.Context) error {
		return s.transfer.Transfer(ctx, reference, amount)
	})

	return tx, nil
}

func (s *WalletService) apply(
	ctx context.Context,
	walletID uuid.UUID,
	txType wallet.TransactionType,
	amount float64,
	reference, description string,
	mutate func(w *wallet.Wallet) error,
) (*wallet.Transaction, error) {
	var before, after wallet.Wallet

	tx, err := s.walletRepo.Apply(ctx, walletID, func(w *wallet.Wallet) (*wallet.Transaction, error) {
		before = *w
		if err := mutate(w); err != nil {
			return nil, err
		}
		after = *w
		return &wallet.Transaction{
			ID:           uuid.New(),
			WalletID:     walletID,
			Type:         txType,
			Amount:       amount,
			BalanceAfter: w.Balance,
			Reference:    reference,
			Description:  description,
			CreatedAt:    s.now(),
		}, nil
	})
	if err != nil {
		if err == shared.ErrLedgerInvariantViolation {
			// An invariant break is unexpected corruption, not a business
			// rejection. Surface it loudly.
			s.logger.Error().
				Str("wallet_id", walletID.String()).
				Str("type", string(txType)).
				Float64("amount", amount).
				Msg("Ledger invariant violated, mutation aborted")
		}
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, walletID); err != nil {
		s.logger.Error().Err(err).Str("wallet_id", walletID.String()).Msg("Failed to invalidate balance cache")
	}

	s.recordAudit(ctx, txType, &before, &after, reference)

	s.logger.Info().
		Str("wallet_id", walletID.String()).
		Str("type", string(txType)).
		Float64("amount", amount).
		Float64("balance_after", tx.BalanceAfter).
		Msg("Ledger operation applied")

	return tx, nil
}

func (s *WalletService) recordAudit(ctx context.Context, txType wallet.TransactionType, before, after *wallet.Wallet, reference string) {
	err := s.audit.Record(ctx, outbound.AuditEntry{
		Actor:    "system",
		Action:   "wallet." + string(txType),
		Entity:   "wallet",
		EntityID: before.ID.String(),
		Before: map[string]interface{}{
			"balance":   before.Balance,
			"available": before.Available,
			"frozen":    before.Frozen,
		},
		After: map[string]interface{}{
			"balance":   after.Balance,
			"available": after.Available,
			"frozen":    after.Frozen,
			"reference": reference,
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("wallet_id", before.ID.String()).Msg("Failed to record wallet audit entry")
	}
}
