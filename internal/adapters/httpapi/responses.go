package httpapi

import (
	"encoding/json"
	"net/http"

	"salvage-auction-service/internal/domain/shared"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps service errors onto HTTP statuses. Business-rule
// rejections carry their messages as data with 422; everything else keeps
// its sentinel's natural status.
func writeDomainError(w http.ResponseWriter, err error) {
	if ve, ok := shared.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "validation failed",
			Details: ve.Messages,
		})
		return
	}

	switch err {
	case shared.ErrAuctionNotFound, shared.ErrVendorNotFound, shared.ErrCaseNotFound,
		shared.ErrWalletNotFound, shared.ErrPaymentNotFound, shared.ErrFundingNotFound,
		shared.ErrNoBidsFound:
		writeError(w, http.StatusNotFound, err.Error())
	case shared.ErrBidConflict:
		writeError(w, http.StatusConflict, err.Error())
	case shared.ErrPaymentAlreadyFinal, shared.ErrCaseAlreadyOnAuction, shared.ErrAuctionCancelled:
		writeError(w, http.StatusConflict, err.Error())
	case shared.ErrRateLimited:
		writeError(w, http.StatusTooManyRequests, err.Error())
	case shared.ErrWebhookSignature:
		writeError(w, http.StatusUnauthorized, err.Error())
	case shared.ErrWebhookAmountMismatch, shared.ErrFundingOutOfRange,
		shared.ErrInvalidEndTime, shared.ErrInvalidIncrement, shared.ErrUnknownPaymentAction,
		shared.ErrInsufficientAvailable, shared.ErrInsufficientFrozen, shared.ErrAmountNotPositive:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
