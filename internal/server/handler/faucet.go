package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// FaucetService defines the methods the faucet handler requires from the
// service layer.
type FaucetService interface {
	Faucet(ctx context.Context, addr common.Address, amount uint64) error
	BalanceOf(addr common.Address) uint64
}

// FaucetHandler serves the dev faucet and balance endpoints. Both routes are
// only registered when dev mode is enabled.
type FaucetHandler struct {
	faucet FaucetService
	logger *slog.Logger
}

// NewFaucetHandler creates a FaucetHandler with the given service and logger.
func NewFaucetHandler(faucet FaucetService, logger *slog.Logger) *FaucetHandler {
	return &FaucetHandler{
		faucet: faucet,
		logger: logger,
	}
}

type faucetRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

// Credit credits the given account from nothing.
// POST /api/faucet
func (h *FaucetHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	addr, ok := parseAddress(req.Address)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid address")
		return
	}
	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be non-zero")
		return
	}

	if err := h.faucet.Faucet(r.Context(), addr, req.Amount); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: faucet credit failed",
			slog.String("address", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to credit account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{
		"balance": h.faucet.BalanceOf(addr),
	})
}

// GetBalance returns an account's bank balance.
// GET /api/balances/{address}
func (h *FaucetHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(pathParam(r, "address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr.Hex(),
		"balance": h.faucet.BalanceOf(addr),
	})
}
