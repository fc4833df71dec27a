package app

import (
	"context"
	"sync"
	"time"

	"salvage-auction-service/internal/domain/auction"
	"salvage-auction-service/internal/domain/bidding"
	"salvage-auction-service/internal/domain/payment"
	"salvage-auction-service/internal/domain/shared"
	"salvage-auction-service/internal/domain/vendor"
	"salvage-auction-service/internal/domain/wallet"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// In-memory fakes for the outbound ports. They reproduce the conditional
// update semantics of the real repositories so concurrency-sensitive paths
// behave the same under test.

type fakeAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*auction.Auction
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: make(map[uuid.UUID]*auction.Auction)}
}

func (r *fakeAuctionRepo) put(a *auction.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.auctions[a.ID] = &cp
}

func (r *fakeAuctionRepo) Create(ctx context.Context, a *auction.Auction) error {
	r.put(a)
	return nil
}

func (r *fakeAuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAuctionRepo) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auction.Auction
	for _, a := range r.auctions {
		if status == nil || a.Status == *status {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) GetActiveByCaseID(ctx context.Context, caseID uuid.UUID) ([]*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auction.Auction
	for _, a := range r.auctions {
		if a.CaseID == caseID && a.AcceptsBids() {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) ListEnded(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auction.Auction
	for _, a := range r.auctions {
		if a.AcceptsBids() && a.Ended(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) Extend(ctx context.Context, id uuid.UUID, newEndTime, expectedEndTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if !a.EndTime.Equal(expectedEndTime) || !a.AcceptsBids() {
		return shared.ErrBidConflict
	}
	a.EndTime = newEndTime
	a.Status = auction.StatusExtended
	a.ExtensionCount++
	return nil
}

func (r *fakeAuctionRepo) Close(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok || !a.AcceptsBids() {
		return shared.ErrAuctionNotFound
	}
	a.Status = auction.StatusClosed
	return nil
}

func (r *fakeAuctionRepo) UpdateWatcherCount(ctx context.Context, id uuid.UUID, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[id]; ok {
		a.WatcherCount = count
	}
	return nil
}

type fakeBidRepo struct {
	mu       sync.Mutex
	auctions *fakeAuctionRepo
	bids     []*bidding.Bid
}

func newFakeBidRepo(auctions *fakeAuctionRepo) *fakeBidRepo {
	return &fakeBidRepo{auctions: auctions}
}

func (r *fakeBidRepo) GetByID(ctx context.Context, id uuid.UUID) (*bidding.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, shared.ErrNoBidsFound
}

func (r *fakeBidRepo) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bidding.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bidding.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBidRepo) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bidding.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *bidding.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID && (best == nil || b.Amount > best.Amount) {
			best = b
		}
	}
	if best == nil {
		return nil, shared.ErrNoBidsFound
	}
	return best, nil
}

func (r *fakeBidRepo) ListBidderIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, b := range r.bids {
		if b.AuctionID == auctionID && !seen[b.VendorID] {
			seen[b.VendorID] = true
			out = append(out, b.VendorID)
		}
	}
	return out, nil
}

func (r *fakeBidRepo) PlaceWithOCC(ctx context.Context, b *bidding.Bid, expectedCurrentBid *float64) error {
	r.auctions.mu.Lock()
	defer r.auctions.mu.Unlock()

	a, ok := r.auctions.auctions[b.AuctionID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if !a.AcceptsBids() {
		return shared.ErrAuctionNotAcceptingBids
	}
	if (a.CurrentBid == nil) != (expectedCurrentBid == nil) {
		return shared.ErrBidConflict
	}
	if a.CurrentBid != nil && *a.CurrentBid != *expectedCurrentBid {
		return shared.ErrBidConflict
	}
	if b.Amount < a.MinimumNextBid() {
		return shared.ErrBidAmountTooLow
	}

	a.RecordBid(b.VendorID, b.Amount)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = append(r.bids, b)
	return nil
}

type fakeVendorRepo struct {
	mu      sync.Mutex
	vendors map[uuid.UUID]*vendor.Vendor
}

func newFakeVendorRepo() *fakeVendorRepo {
	return &fakeVendorRepo{vendors: make(map[uuid.UUID]*vendor.Vendor)}
}

func (r *fakeVendorRepo) put(v *vendor.Vendor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.vendors[v.ID] = &cp
}

func (r *fakeVendorRepo) GetByID(ctx context.Context, id uuid.UUID) (*vendor.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[id]
	if !ok {
		return nil, shared.ErrVendorNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *fakeVendorRepo) Create(ctx context.Context, v *vendor.Vendor) error {
	r.put(v)
	return nil
}

func (r *fakeVendorRepo) Suspend(ctx context.Context, id uuid.UUID, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[id]
	if !ok {
		return shared.ErrVendorNotFound
	}
	v.SuspendedUntil = &until
	return nil
}

type fakeCaseRepo struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*shared.Case
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: make(map[uuid.UUID]*shared.Case)}
}

func (r *fakeCaseRepo) put(c *shared.Case) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.cases[c.ID] = &cp
}

func (r *fakeCaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*shared.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, shared.ErrCaseNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCaseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.CaseStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return shared.ErrCaseNotFound
	}
	c.Status = status
	return nil
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*wallet.Wallet
	txs     []*wallet.Transaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[uuid.UUID]*wallet.Wallet)}
}

func (r *fakeWalletRepo) put(w *wallet.Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.ID] = &cp
}

func (r *fakeWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, shared.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWalletRepo) GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.VendorID == vendorID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, shared.ErrWalletNotFound
}

func (r *fakeWalletRepo) CreateForVendor(ctx context.Context, vendorID uuid.UUID) (*wallet.Wallet, error) {
	w := &wallet.Wallet{ID: uuid.New(), VendorID: vendorID}
	r.put(w)
	return w, nil
}

func (r *fakeWalletRepo) Apply(ctx context.Context, walletID uuid.UUID, mutate func(w *wallet.Wallet) (*wallet.Transaction, error)) (*wallet.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, shared.ErrWalletNotFound
	}

	working := *w
	tx, err := mutate(&working)
	if err != nil {
		return nil, err
	}
	*w = working
	r.txs = append(r.txs, tx)
	return tx, nil
}

func (r *fakeWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]*wallet.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*wallet.Transaction
	for i := len(r.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.txs[i].WalletID == walletID {
			out = append(out, r.txs[i])
		}
	}
	return out, nil
}

type fakeFundingRepo struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*wallet.FundingRequest
}

func newFakeFundingRepo() *fakeFundingRepo {
	return &fakeFundingRepo{requests: make(map[uuid.UUID]*wallet.FundingRequest)}
}

func (r *fakeFundingRepo) Create(ctx context.Context, fr *wallet.FundingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *fr
	r.requests[fr.ID] = &cp
	return nil
}

func (r *fakeFundingRepo) GetByReference(ctx context.Context, reference string) (*wallet.FundingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fr := range r.requests {
		if fr.Reference == reference {
			cp := *fr
			return &cp, nil
		}
	}
	return nil, shared.ErrFundingNotFound
}

func (r *fakeFundingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status wallet.FundingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fr, ok := r.requests[id]
	if !ok {
		return shared.ErrFundingNotFound
	}
	fr.Status = status
	return nil
}

type fakePaymentRepo struct {
	mu        sync.Mutex
	payments  map[uuid.UUID]*payment.Payment
	reminded  map[uuid.UUID]bool
	forfeited map[uuid.UUID]bool
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments:  make(map[uuid.UUID]*payment.Payment),
		reminded:  make(map[uuid.UUID]bool),
		forfeited: make(map[uuid.UUID]bool),
	}
}

func (r *fakePaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.AuctionID == auctionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrPaymentNotFound
}

func (r *fakePaymentRepo) GetByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.Reference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrPaymentNotFound
}

func (r *fakePaymentRepo) ListPending(ctx context.Context, limit int) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if !p.Final() && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID]; !ok {
		return shared.ErrPaymentNotFound
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) MarkReminded(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reminded[id] {
		return shared.ErrPaymentAlreadyFinal
	}
	r.reminded[id] = true
	return nil
}

func (r *fakePaymentRepo) ListUnreminded(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.Final() || r.reminded[p.ID] || r.forfeited[p.ID] {
			continue
		}
		if !p.Deadline.After(now.Add(payment.ReminderWindow)) && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) MarkForfeited(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forfeited[id] {
		return shared.ErrPaymentAlreadyFinal
	}
	r.forfeited[id] = true
	return nil
}

func (r *fakePaymentRepo) ListUnforfeited(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payment.Payment
	for _, p := range r.payments {
		if p.Final() || r.forfeited[p.ID] {
			continue
		}
		if !p.Deadline.After(now.Add(-payment.ForfeitAfter)) && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (b *fakeBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (b *fakeBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (b *fakeBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeBroadcaster) SubscriberCount(ctx context.Context, auctionID uuid.UUID) int {
	return 0
}

func (b *fakeBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return false
}

func (b *fakeBroadcaster) eventTypes() []outbound.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []outbound.EventType
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	sms    []string
	emails []string
}

func (n *fakeNotifier) SendSMS(ctx context.Context, phone, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sms = append(n.sms, phone+": "+message)
	return nil
}

func (n *fakeNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, to+": "+subject)
	return nil
}

type fakeOTPStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{codes: make(map[string]string)}
}

func (s *fakeOTPStore) Issue(ctx context.Context, phone string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = "123456"
	return "123456", nil
}

func (s *fakeOTPStore) Verify(ctx context.Context, phone, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[phone]
	delete(s.codes, phone)
	return ok && stored == code, nil
}

type fakeBalanceCache struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID][3]float64
}

func newFakeBalanceCache() *fakeBalanceCache {
	return &fakeBalanceCache{snapshots: make(map[uuid.UUID][3]float64)}
}

func (c *fakeBalanceCache) Get(ctx context.Context, walletID uuid.UUID) (float64, float64, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snapshots[walletID]
	return s[0], s[1], s[2], ok
}

func (c *fakeBalanceCache) Set(ctx context.Context, walletID uuid.UUID, balance, available, frozen float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[walletID] = [3]float64{balance, available, frozen}
	return nil
}

func (c *fakeBalanceCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, walletID)
	return nil
}

type fakeRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func newFakeRateLimiter(limit int) *fakeRateLimiter {
	return &fakeRateLimiter{counts: make(map[string]int), limit: limit}
}

func (l *fakeRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	max := limit
	if l.limit > 0 {
		max = l.limit
	}
	return l.counts[key] <= max, nil
}

type fakeTransferClient struct {
	mu        sync.Mutex
	transfers []string
}

func (c *fakeTransferClient) Transfer(ctx context.Context, reference string, amount float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transfers = append(c.transfers, reference)
	return nil
}

type fakeAuditLog struct {
	mu      sync.Mutex
	entries []outbound.AuditEntry
}

func (l *fakeAuditLog) Record(ctx context.Context, entry outbound.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *fakeAuditLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		out = append(out, e.Action)
	}
	return out
}
