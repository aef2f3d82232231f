package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

// PurchaseService defines the methods the purchase handler requires from the
// service layer.
type PurchaseService interface {
	BuyToken(ctx context.Context, caller common.Address, tokenID, payment uint64) (domain.MarketEvent, error)
}

// PurchaseHandler serves the purchase endpoint.
type PurchaseHandler struct {
	purchases PurchaseService
	auth      CallerAuth
	logger    *slog.Logger
}

// NewPurchaseHandler creates a PurchaseHandler with the given service and
// logger.
func NewPurchaseHandler(purchases PurchaseService, auth CallerAuth, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		purchases: purchases,
		auth:      auth,
		logger:    logger,
	}
}

type purchaseRequest struct {
	callerRequest
	TokenID uint64 `json:"token_id"`
	Payment uint64 `json:"payment"`
}

// CreatePurchase buys a listed token for exactly its listed price.
// POST /api/purchases
func (h *PurchaseHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TokenID == 0 {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	caller, err := h.auth.Resolve("buy", req.TokenID, req.Payment, req.callerRequest)
	if err != nil {
		writeCallerError(w, err)
		return
	}

	ev, err := h.purchases.BuyToken(r.Context(), caller, req.TokenID, req.Payment)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotListed):
			writeError(w, http.StatusNotFound, "token is not listed")
		case errors.Is(err, domain.ErrWrongPayment):
			writeError(w, http.StatusBadRequest, "payment must equal the listed price")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusPaymentRequired, "insufficient funds")
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "token is busy, retry")
		default:
			h.logger.ErrorContext(r.Context(), "handler: purchase failed",
				slog.Uint64("token_id", req.TokenID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to complete purchase")
		}
		return
	}

	writeJSON(w, http.StatusCreated, ev)
}
