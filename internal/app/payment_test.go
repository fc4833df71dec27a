package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/vendor"
	"salvage-auction-service/internal/domain/wallet"
	"salvage-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

type paymentFixture struct {
	paymentRepo *fakePaymentRepo
	fundingRepo *fakeFundingRepo
	vendorRepo  *fakeVendorRepo
	walletRepo  *fakeWalletRepo
	notifier    *fakeNotifier
	audit       *fakeAuditLog
	effects     *EffectRunner
	wallets     *WalletService
	payments    *PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	f := &paymentFixture{
		paymentRepo: newFakePaymentRepo(),
		fundingRepo: newFakeFundingRepo(),
		vendorRepo:  newFakeVendorRepo(),
		walletRepo:  newFakeWalletRepo(),
		notifier:    &fakeNotifier{},
		audit:       &fakeAuditLog{},
		effects:     NewEffectRunner(zerolog.Nop()),
	}

	f.wallets = NewWalletService(WalletServiceParams{
		WalletRepo:  f.walletRepo,
		FundingRepo: f.fundingRepo,
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

	f.payments = NewPaymentService(PaymentServiceParams{
		PaymentRepo:   f.paymentRepo,
		FundingRepo:   f.fundingRepo,
		VendorRepo:    f.vendorRepo,
		WalletRepo:    f.walletRepo,
		Wallets:       f.wallets,
		Notifier:      f.notifier,
		Audit:         f.audit,
		Effects:       f.effects,
		Logger:        zerolog.Nop(),
		WebhookSecret: testWebhookSecret,
	})
	f.payments.now = func() time.Time { return testTime }
	return f
}

func (f *paymentFixture) seedVendor(t *testing.T) *vendor.Vendor {
	t.Helper()
	v := &vendor.Vendor{
		ID:    uuid.New(),
		Tier:  vendor.Tier1,
		Phone: "+2348040000000",
		Email: "vendor@example.com",
	}
	f.vendorRepo.put(v)
	return v
}

func (f *paymentFixture) seedPayment(t *testing.T, vendorID uuid.UUID, amount float64, deadline time.Time) *payment.Payment {
	t.Helper()
	p := &payment.Payment{
		ID:        uuid.New(),
		AuctionID: uuid.New(),
		VendorID:  vendorID,
		Amount:    amount,
		Method:    "escrow",
		Reference: NewReference("PAY"),
		Status:    payment.StatusPending,
		Deadline:  deadline,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	require.NoError(t, f.paymentRepo.Create(context.Background(), p))
	return p
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func chargeSuccessBody(reference string, amountKobo int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"reference":%q,"amount":%d,"status":"success"}}`,
		reference, amountKobo,
	))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t)
	body := chargeSuccessBody("PAY-x", 100)

	err := f.payments.HandleProviderEvent(context.Background(), body, "deadbeef")
	require.ErrorIs(t, err, shared.ErrWebhookSignature)

	// A valid signature over a different body does not transfer.
	other := signWebhook([]byte(`{"event":"charge.success"}`))
	err = f.payments.HandleProviderEvent(context.Background(), body, other)
	require.ErrorIs(t, err, shared.ErrWebhookSignature)
	f.effects.Stop()
}

func TestWebhookVerifiesAuctionPayment(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)
	p := f.seedPayment(t, v.ID, 150_000, testTime.Add(payment.PaymentWindow))

	body := chargeSuccessBody(p.Reference, shared.Kobo(p.Amount))
	require.NoError(t, f.payments.HandleProviderEvent(context.Background(), body, signWebhook(body)))
	f.effects.Stop()

	got, err := f.paymentRepo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusVerified, got.Status)
	require.Contains(t, f.audit.actions(), "payment.verify")
}

func TestWebhookAmountMismatch(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)
	p := f.seedPayment(t, v.ID, 150_000, testTime.Add(payment.PaymentWindow))

	body := chargeSuccessBody(p.Reference, shared.Kobo(p.Amount)-1)
	err := f.payments.HandleProviderEvent(context.Background(), body, signWebhook(body))
	require.ErrorIs(t, err, shared.ErrWebhookAmountMismatch)
	f.effects.Stop()

	got, err := f.paymentRepo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusPending, got.Status)
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)
	p := f.seedPayment(t, v.ID, 90_000, testTime.Add(payment.PaymentWindow))

	body := chargeSuccessBody(p.Reference, shared.Kobo(p.Amount))
	sig := signWebhook(body)
	require.NoError(t, f.payments.HandleProviderEvent(context.Background(), body, sig))
	require.NoError(t, f.payments.HandleProviderEvent(context.Background(), body, sig))
	f.effects.Stop()

	var verifications int
	for _, action := range f.audit.actions() {
		if action == "payment.verify" {
			verifications++
		}
	}
	require.Equal(t, 1, verifications)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)
	p := f.seedPayment(t, v.ID, 90_000, testTime.Add(payment.PaymentWindow))

	body := []byte(fmt.Sprintf(
		`{"event":"charge.failed","data":{"reference":%q,"amount":%d,"status":"failed"}}`,
		p.Reference, shared.Kobo(p.Amount),
	))
	require.NoError(t, f.payments.HandleProviderEvent(context.Background(), body, signWebhook(body)))
	f.effects.Stop()

	got, err := f.paymentRepo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusPending, got.Status)
}

func TestWebhookSettlesFunding(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)

	w, err := f.walletRepo.CreateForVendor(context.Background(), v.ID)
	require.NoError(t, err)

	fr := &wallet.FundingRequest{
		ID:        uuid.New(),
		VendorID:  v.ID,
		Reference: NewReference("FND"),
		Amount:    250_000,
		Status:    wallet.FundingInitiated,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	require.NoError(t, f.fundingRepo.Create(context.Background(), fr))

	body := chargeSuccessBody(fr.Reference, shared.Kobo(fr.Amount))
	sig := signWebhook(body)
	require.NoError(t, f.payments.HandleProviderEvent(context.Background(), body, sig))

	// Redelivery after completion must not credit twice.
	require.NoError(t, f.payments.HandleProviderEvent(context.Background(), body, sig))
	f.effects.Stop()

	got, err := f.fundingRepo.GetByReference(context.Background(), fr.Reference)
	require.NoError(t, err)
	require.Equal(t, wallet.FundingCompleted, got.Status)

	funded, err := f.walletRepo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.Equal(t, 250_000.0, funded.Balance)
	require.Equal(t, 250_000.0, funded.Available)
}

func TestDecidePayment(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)
	officerID := uuid.New()

	t.Run("verify", func(t *testing.T) {
		p := f.seedPayment(t, v.ID, 100_000, testTime.Add(payment.PaymentWindow))
		decided, err := f.payments.DecidePayment(context.Background(), inbound.DecidePaymentRequest{
			PaymentID:        p.ID,
			FinanceOfficerID: officerID,
			Action:           "verify",
			Comment:          "bank transfer confirmed",
		})
		require.NoError(t, err)
		require.Equal(t, payment.StatusVerified, decided.Status)
		require.Equal(t, officerID, *decided.VerifiedBy)
	})

	t.Run("reject", func(t *testing.T) {
		p := f.seedPayment(t, v.ID, 100_000, testTime.Add(payment.PaymentWindow))
		decided, err := f.payments.DecidePayment(context.Background(), inbound.DecidePaymentRequest{
			PaymentID:        p.ID,
			FinanceOfficerID: officerID,
			Action:           "reject",
		})
		require.NoError(t, err)
		require.Equal(t, payment.StatusRejected, decided.Status)
	})

	t.Run("already final", func(t *testing.T) {
		p := f.seedPayment(t, v.ID, 100_000, testTime.Add(payment.PaymentWindow))
		_, err := f.payments.DecidePayment(context.Background(), inbound.DecidePaymentRequest{
			PaymentID: p.ID, FinanceOfficerID: officerID, Action: "verify",
		})
		require.NoError(t, err)
		_, err = f.payments.DecidePayment(context.Background(), inbound.DecidePaymentRequest{
			PaymentID: p.ID, FinanceOfficerID: officerID, Action: "reject",
		})
		require.ErrorIs(t, err, shared.ErrPaymentAlreadyFinal)
	})

	t.Run("unknown action", func(t *testing.T) {
		p := f.seedPayment(t, v.ID, 100_000, testTime.Add(payment.PaymentWindow))
		_, err := f.payments.DecidePayment(context.Background(), inbound.DecidePaymentRequest{
			PaymentID: p.ID, FinanceOfficerID: officerID, Action: "approve",
		})
		require.ErrorIs(t, err, shared.ErrUnknownPaymentAction)
	})

	f.effects.Stop()
}

func TestDeadlineSweepSendsReminderOnce(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)
	p := f.seedPayment(t, v.ID, 100_000, testTime.Add(6*time.Hour))

	require.NoError(t, f.payments.DeadlineSweep(context.Background(), testTime))
	require.NoError(t, f.payments.DeadlineSweep(context.Background(), testTime))
	f.effects.Stop()

	require.Len(t, f.notifier.sms, 1)
	require.Len(t, f.notifier.emails, 1)
	require.Contains(t, f.notifier.sms[0], p.Reference)
	require.Equal(t, payment.StateReminderSent, p.State(testTime))
}

func TestDeadlineSweepSkipsPaymentsFarFromDeadline(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)
	f.seedPayment(t, v.ID, 100_000, testTime.Add(72*time.Hour))

	require.NoError(t, f.payments.DeadlineSweep(context.Background(), testTime))
	f.effects.Stop()

	require.Empty(t, f.notifier.sms)
}

func TestDeadlineSweepForfeits(t *testing.T) {
	f := newPaymentFixture(t)
	v := f.seedVendor(t)

	w, err := f.walletRepo.CreateForVendor(context.Background(), v.ID)
	require.NoError(t, err)
	require.NoError(t, f.walletRepo.wallets[w.ID].Credit(200_000))
	require.NoError(t, f.walletRepo.wallets[w.ID].Freeze(120_000))

	p := f.seedPayment(t, v.ID, 120_000, testTime.Add(-payment.ForfeitAfter-time.Hour))

	require.NoError(t, f.payments.DeadlineSweep(context.Background(), testTime))
	// A second sweep must not suspend or release again.
	require.NoError(t, f.payments.DeadlineSweep(context.Background(), testTime))
	f.effects.Stop()

	// Vendor is locked out for the full suspension period.
	suspended, err := f.vendorRepo.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	require.NotNil(t, suspended.SuspendedUntil)
	require.Equal(t, testTime.Add(vendor.SuspensionPeriod), *suspended.SuspendedUntil)

	// The closure freeze is released back to the available pool.
	got, err := f.walletRepo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, got.Frozen)
	require.Equal(t, 200_000.0, got.Available)

	var forfeitures int
	for _, action := range f.audit.actions() {
		if action == "payment.forfeited" {
			forfeitures++
		}
	}
	require.Equal(t, 1, forfeitures)
	require.Equal(t, payment.StateForfeited, p.State(testTime))

	// A forfeited payment that never got its reminder must drop out of
	// the reminder queue, not head it on every sweep.
	unreminded, err := f.paymentRepo.ListUnreminded(context.Background(), testTime, 100)
	require.NoError(t, err)
	require.Empty(t, unreminded)
}
