package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"salvage-auction-service/internal/domain/auction"
	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/vendor"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type auctionFixture struct {
	auctionRepo *fakeAuctionRepo
	bidRepo     *fakeBidRepo
	caseRepo    *fakeCaseRepo
	vendorRepo  *fakeVendorRepo
	paymentRepo *fakePaymentRepo
	walletRepo  *fakeWalletRepo
	broadcaster *fakeBroadcaster
	notifier    *fakeNotifier
	audit       *fakeAuditLog
	effects     *EffectRunner
	wallets     *WalletService
	auctions    *AuctionService
}

func newAuctionFixture(t *testing.T) *auctionFixture {
	t.Helper()

	f := &auctionFixture{
		auctionRepo: newFakeAuctionRepo(),
		caseRepo:    newFakeCaseRepo(),
		vendorRepo:  newFakeVendorRepo(),
		paymentRepo: newFakePaymentRepo(),
		walletRepo:  newFakeWalletRepo(),
		broadcaster: &fakeBroadcaster{},
		notifier:    &fakeNotifier{},
		audit:       &fakeAuditLog{},
		effects:     NewEffectRunner(zerolog.Nop()),
	}
	f.bidRepo = newFakeBidRepo(f.auctionRepo)

	f.wallets = NewWalletService(WalletServiceParams{
		WalletRepo:  f.walletRepo,
		FundingRepo: newFakeFundingRepo(),
		VendorRepo:  f.vendorRepo,
		Cache:       newFakeBalanceCache(),
		Limiter:     newFakeRateLimiter(0),
		Transfer:    &fakeTransferClient{},
		Audit:       f.audit,
		Effects:     f.effects,
		Logger:      zerolog.Nop(),
		CheckoutURL: "https://checkout.example",
	})
	f.wallets.now = func() time.Time { return testTime }

	f.auctions = NewAuctionService(AuctionServiceParams{
		AuctionRepo: f.auctionRepo,
		BidRepo:     f.bidRepo,
		CaseRepo:    f.caseRepo,
		VendorRepo:  f.vendorRepo,
		PaymentRepo: f.paymentRepo,
		Wallets:     f.wallets,
		WalletRepo:  f.walletRepo,
		Broadcaster: f.broadcaster,
		Notifier:    f.notifier,
		Audit:       f.audit,
		Effects:     f.effects,
		Logger:      zerolog.Nop(),
		PaymentURL:  "https://pay.example/payments",
	})
	f.auctions.now = func() time.Time { return testTime }

	return f
}

func (f *auctionFixture) seedEndedAuctionWithWinner(t *testing.T, amount float64) (uuid.UUID, uuid.UUID) {
	t.Helper()

	winnerID := uuid.New()
	f.vendorRepo.put(&vendor.Vendor{
		ID:    winnerID,
		Tier:  vendor.Tier2,
		Phone: "+2348011111111",
		Email: "winner@example.com",
	})

	w, err := f.walletRepo.CreateForVendor(context.Background(), winnerID)
	require.NoError(t, err)
	require.NoError(t, f.walletRepo.wallets[w.ID].Credit(amount*2))

	auctionID := uuid.New()
	f.auctionRepo.put(&auction.Auction{
		ID:              auctionID,
		CaseID:          uuid.New(),
		CurrentBid:      &amount,
		CurrentBidderID: &winnerID,
		StartTime:       testTime.Add(-2 * time.Hour),
		EndTime:         testTime.Add(-time.Minute),
		OriginalEndTime: testTime.Add(-time.Minute),
		MinIncrement:    5_000,
		Status:          auction.StatusActive,
	})
	return auctionID, winnerID
}

func TestCreateAuction(t *testing.T) {
	f := newAuctionFixture(t)

	caseID := uuid.New()
	f.caseRepo.put(&shared.Case{ID: caseID, Status: shared.CaseStatusApproved})

	a, err := f.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		CaseID:       caseID,
		StartTime:    testTime,
		EndTime:      testTime.Add(2 * time.Hour),
		MinIncrement: 5_000,
	})
	require.NoError(t, err)
	require.Equal(t, auction.StatusActive, a.Status)
	require.Equal(t, a.EndTime, a.OriginalEndTime)

	c, err := f.caseRepo.GetByID(context.Background(), caseID)
	require.NoError(t, err)
	require.Equal(t, shared.CaseStatusOnAuction, c.Status)

	// A case with an open auction cannot get a second one.
	_, err = f.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		CaseID:       caseID,
		StartTime:    testTime,
		EndTime:      testTime.Add(time.Hour),
		MinIncrement: 1_000,
	})
	require.ErrorIs(t, err, shared.ErrCaseAlreadyOnAuction)
	f.effects.Stop()
}

func TestCreateAuctionRejectsBadInput(t *testing.T) {
	f := newAuctionFixture(t)

	caseID := uuid.New()
	f.caseRepo.put(&shared.Case{ID: caseID, Status: shared.CaseStatusApproved})

	_, err := f.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		CaseID:       caseID,
		StartTime:    testTime,
		EndTime:      testTime,
		MinIncrement: 5_000,
	})
	require.ErrorIs(t, err, shared.ErrInvalidEndTime)

	_, err = f.auctions.CreateAuction(context.Background(), inbound.CreateAuctionRequest{
		CaseID:       caseID,
		StartTime:    testTime,
		EndTime:      testTime.Add(time.Hour),
		MinIncrement: 0,
	})
	require.ErrorIs(t, err, shared.ErrInvalidIncrement)
	f.effects.Stop()
}

func TestEvaluateExtensionInsideWindow(t *testing.T) {
	f := newAuctionFixture(t)

	auctionID := uuid.New()
	end := testTime.Add(4 * time.Minute)
	f.auctionRepo.put(&auction.Auction{
		ID:              auctionID,
		EndTime:         end,
		OriginalEndTime: end,
		Status:          auction.StatusActive,
	})

	extended, err := f.auctions.EvaluateExtension(context.Background(), auctionID)
	require.NoError(t, err)
	require.True(t, extended)

	a, err := f.auctionRepo.GetByID(context.Background(), auctionID)
	require.NoError(t, err)
	require.Equal(t, end.Add(auction.ExtensionAmount), a.EndTime)
	require.Equal(t, auction.StatusExtended, a.Status)
	require.Equal(t, 1, a.ExtensionCount)
	f.effects.Stop()
}

func TestEvaluateExtensionOutsideWindow(t *testing.T) {
	f := newAuctionFixture(t)

	auctionID := uuid.New()
	end := testTime.Add(10 * time.Minute)
	f.auctionRepo.put(&auction.Auction{
		ID:              auctionID,
		EndTime:         end,
		OriginalEndTime: end,
		Status:          auction.StatusActive,
	})

	extended, err := f.auctions.EvaluateExtension(context.Background(), auctionID)
	require.NoError(t, err)
	require.False(t, extended)

	a, err := f.auctionRepo.GetByID(context.Background(), auctionID)
	require.NoError(t, err)
	require.Equal(t, end, a.EndTime)
	f.effects.Stop()
}

func TestCloseAuctionWithWinner(t *testing.T) {
	f := newAuctionFixture(t)
	auctionID, winnerID := f.seedEndedAuctionWithWinner(t, 150_000)

	result, err := f.auctions.CloseAuction(context.Background(), auctionID)
	require.NoError(t, err)
	require.Equal(t, winnerID, *result.WinnerID)
	require.Equal(t, 150_000.0, *result.WinningAmount)
	require.NotNil(t, result.PaymentReference)
	f.effects.Stop()

	// Payment opens with the 24-hour window and the winning amount.
	p, err := f.paymentRepo.GetByAuctionID(context.Background(), auctionID)
	require.NoError(t, err)
	require.Equal(t, 150_000.0, p.Amount)
	require.Equal(t, payment.StatusPending, p.Status)
	require.Equal(t, testTime.Add(payment.PaymentWindow), p.Deadline)

	// Winner's escrow funds are frozen for the won amount.
	w, err := f.walletRepo.GetByVendorID(context.Background(), winnerID)
	require.NoError(t, err)
	require.Equal(t, 150_000.0, w.Frozen)

	require.Contains(t, f.broadcaster.eventTypes(), outbound.EventTypeAuctionClosed)
}

func TestCloseAuctionIdempotent(t *testing.T) {
	f := newAuctionFixture(t)
	auctionID, winnerID := f.seedEndedAuctionWithWinner(t, 90_000)

	first, err := f.auctions.CloseAuction(context.Background(), auctionID)
	require.NoError(t, err)

	second, err := f.auctions.CloseAuction(context.Background(), auctionID)
	require.NoError(t, err)
	require.Equal(t, *first.PaymentReference, *second.PaymentReference)
	require.Equal(t, winnerID, *second.WinnerID)
	f.effects.Stop()

	// Only one payment exists and the freeze applied once.
	w, err := f.walletRepo.GetByVendorID(context.Background(), winnerID)
	require.NoError(t, err)
	require.Equal(t, 90_000.0, w.Frozen)
}

// Two overlapping closures of the same auction, as a slow scheduler tick
// plus the fallback sweep can produce, must settle on a single payment and
// a single freeze: only the caller that flips the status creates anything.
func TestCloseAuctionConcurrentInvocations(t *testing.T) {
	f := newAuctionFixture(t)
	auctionID, winnerID := f.seedEndedAuctionWithWinner(t, 200_000)

	start := make(chan struct{})
	results := make([]*shared.ClosureResult, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.auctions.CloseAuction(context.Background(), auctionID)
		}(i)
	}
	close(start)
	wg.Wait()
	f.effects.Stop()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].WinnerID)
		require.Equal(t, winnerID, *results[i].WinnerID)
	}

	// Exactly one payment row for the auction, regardless of interleaving.
	f.paymentRepo.mu.Lock()
	var count int
	for _, p := range f.paymentRepo.payments {
		if p.AuctionID == auctionID {
			count++
		}
	}
	f.paymentRepo.mu.Unlock()
	require.Equal(t, 1, count)

	// The freeze applied once, not per caller.
	w, err := f.walletRepo.GetByVendorID(context.Background(), winnerID)
	require.NoError(t, err)
	require.Equal(t, 200_000.0, w.Frozen)
}

func TestCloseAuctionNoBids(t *testing.T) {
	f := newAuctionFixture(t)

	auctionID := uuid.New()
	f.auctionRepo.put(&auction.Auction{
		ID:              auctionID,
		CaseID:          uuid.New(),
		EndTime:         testTime.Add(-time.Minute),
		OriginalEndTime: testTime.Add(-time.Minute),
		Status:          auction.StatusActive,
	})

	result, err := f.auctions.CloseAuction(context.Background(), auctionID)
	require.NoError(t, err)
	require.Nil(t, result.WinnerID)
	require.Nil(t, result.PaymentReference)
	f.effects.Stop()

	a, err := f.auctionRepo.GetByID(context.Background(), auctionID)
	require.NoError(t, err)
	require.True(t, a.IsClosed())

	_, err = f.paymentRepo.GetByAuctionID(context.Background(), auctionID)
	require.ErrorIs(t, err, shared.ErrPaymentNotFound)
}

func TestCloseAuctionWinnerWithoutWallet(t *testing.T) {
	f := newAuctionFixture(t)

	winnerID := uuid.New()
	f.vendorRepo.put(&vendor.Vendor{
		ID:    winnerID,
		Tier:  vendor.Tier1,
		Phone: "+2348022222222",
		Email: "nowallet@example.com",
	})

	amount := 60_000.0
	auctionID := uuid.New()
	f.auctionRepo.put(&auction.Auction{
		ID:              auctionID,
		CaseID:          uuid.New(),
		CurrentBid:      &amount,
		CurrentBidderID: &winnerID,
		EndTime:         testTime.Add(-time.Minute),
		OriginalEndTime: testTime.Add(-time.Minute),
		Status:          auction.StatusActive,
	})

	// Closure still succeeds; the missing freeze is handled by the
	// deadline sweep if the winner never pays.
	result, err := f.auctions.CloseAuction(context.Background(), auctionID)
	require.NoError(t, err)
	require.Equal(t, winnerID, *result.WinnerID)
	f.effects.Stop()
}
