package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"salvage-auction-service/internal/domain/auction"
	"salvage-auction-service/internal/ports/inbound"
	"salvage-auction-service/internal/ports/outbound"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SignatureHeader carries the provider's HMAC-SHA512 hex signature over the
// raw webhook body.
const SignatureHeader = "X-Provider-Signature"

const otpTTL = 5 * time.Minute

// Handler carries the REST endpoint implementations
type Handler struct {
	auctions   inbound.AuctionService
	bids       inbound.BidService
	wallets    inbound.WalletService
	payments   inbound.PaymentService
	walletRepo outbound.WalletRepository
	otpStore   outbound.OTPStore
	vendors    outbound.VendorRepository
	notifier   outbound.Notifier
	logger     zerolog.Logger
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "salvage-auction-api",
	})
}

// CreateAuction opens bidding for an approved salvage case
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req inbound.CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.auctions.CreateAuction(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListAuctions returns a page of auctions, optionally filtered by status
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	req := inbound.ListAuctionsRequest{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 10),
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := auction.Status(statusStr)
		req.Status = &status
	}

	auctions, err := h.auctions.ListAuctions(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"auctions": auctions,
		"count":    len(auctions),
	})
}

func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	a, err := h.auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CloseAuction finalizes an ended auction on demand. Closing an
// already-closed auction returns the existing result.
func (h *Handler) CloseAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	result, err := h.auctions.CloseAuction(r.Context(), auctionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	bids, err := h.bids.GetBids(r.Context(), auctionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bids":  bids,
		"count": len(bids),
	})
}

type placeBidBody struct {
	VendorID uuid.UUID `json:"vendor_id"`
	Amount   float64   `json:"amount"`
	OTPCode  string    `json:"otp"`
	DeviceID string    `json:"device_id"`
}

// PlaceBid validates and records a bid. Rule failures come back as 422 with
// the failed rules listed; a concurrent higher bid is a 409 the client may
// retry with fresh state.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathUUID(w, r, "auctionID")
	if !ok {
		return
	}

	var body placeBidBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), inbound.PlaceBidRequest{
		AuctionID: auctionID,
		VendorID:  body.VendorID,
		Amount:    body.Amount,
		OTPCode:   body.OTPCode,
		IPAddress: r.RemoteAddr,
		DeviceID:  body.DeviceID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

type requestOTPBody struct {
	VendorID uuid.UUID `json:"vendor_id"`
}

// RequestOTP issues a fresh bid confirmation code to the vendor's phone
func (h *Handler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var body requestOTPBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.vendors.GetByID(r.Context(), body.VendorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	code, err := h.otpStore.Issue(r.Context(), v.Phone, otpTTL)
	if err != nil {
		h.logger.Error().Err(err).Str("vendor_id", v.ID.String()).Msg("Failed to issue OTP")
		writeError(w, http.StatusInternalServerError, "failed to issue code")
		return
	}

	if err := h.notifier.SendSMS(r.Context(), v.Phone, "Your bid confirmation code is "+code); err != nil {
		h.logger.Error().Err(err).Str("vendor_id", v.ID.String()).Msg("Failed to send OTP SMS")
		writeError(w, http.StatusBadGateway, "failed to deliver code")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// FundWallet starts a provider checkout for an escrow top-up
func (h *Handler) FundWallet(w http.ResponseWriter, r *http.Request) {
	var req inbound.FundWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.wallets.FundWallet(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	walletID, ok := pathUUID(w, r, "walletID")
	if !ok {
		return
	}

	wlt, err := h.wallets.Balance(r.Context(), walletID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wallet_id": wlt.ID,
		"balance":   wlt.Balance,
		"available": wlt.Available,
		"frozen":    wlt.Frozen,
	})
}

func (h *Handler) WalletTransactions(w http.ResponseWriter, r *http.Request) {
	walletID, ok := pathUUID(w, r, "walletID")
	if !ok {
		return
	}

	txs, err := h.walletRepo.ListTransactions(r.Context(), walletID, queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// GetPayment returns a payment with its time-derived deadline state
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "paymentID")
	if !ok {
		return
	}

	p, state, err := h.payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment":        p,
		"deadline_state": state,
	})
}

type decidePaymentBody struct {
	FinanceOfficerID uuid.UUID `json:"finance_officer_id"`
	Action           string    `json:"action"`
	Comment          string    `json:"comment"`
}

// DecidePayment records a finance officer's verify/reject decision
func (h *Handler) DecidePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "paymentID")
	if !ok {
		return
	}

	var body decidePaymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.payments.DecidePayment(r.Context(), inbound.DecidePaymentRequest{
		PaymentID:        paymentID,
		FinanceOfficerID: body.FinanceOfficerID,
		Action:           body.Action,
		Comment:          body.Comment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PaymentWebhook consumes signed provider events. The signature is verified
// over the raw body exactly as received, before any decoding.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := h.payments.HandleProviderEvent(r.Context(), rawBody, r.Header.Get(SignatureHeader)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
