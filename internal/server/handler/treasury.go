package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

// TreasuryService defines the methods the treasury handler requires from the
// service layer.
type TreasuryService interface {
	TreasuryBalance() uint64
	WithdrawTreasury(ctx context.Context, caller common.Address) (uint64, error)
}

// TreasuryHandler serves treasury endpoints.
type TreasuryHandler struct {
	treasury TreasuryService
	auth     CallerAuth
	logger   *slog.Logger
}

// NewTreasuryHandler creates a TreasuryHandler with the given service and
// logger.
func NewTreasuryHandler(treasury TreasuryService, auth CallerAuth, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{
		treasury: treasury,
		auth:     auth,
		logger:   logger,
	}
}

// GetTreasury returns the undistributed fee balance.
// GET /api/treasury
func (h *TreasuryHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{
		"balance": h.treasury.TreasuryBalance(),
	})
}

type withdrawRequest struct {
	callerRequest
}

// Withdraw drains the treasury to the caller, who must be the operator.
// POST /api/treasury/withdraw
func (h *TreasuryHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, err := h.auth.Resolve("withdraw", 0, 0, req.callerRequest)
	if err != nil {
		writeCallerError(w, err)
		return
	}

	amount, err := h.treasury.WithdrawTreasury(r.Context(), caller)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "caller is not the operator")
		case errors.Is(err, domain.ErrZeroBalance):
			writeError(w, http.StatusConflict, "treasury is empty")
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		default:
			h.logger.ErrorContext(r.Context(), "handler: treasury withdraw failed",
				slog.String("caller", caller.Hex()),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to withdraw")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{"amount": amount})
}
