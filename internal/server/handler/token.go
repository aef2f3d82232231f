package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

// TokenService defines the methods the token handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type TokenService interface {
	MintToken(ctx context.Context, caller common.Address, metadata string) (domain.Token, error)
	GetToken(ctx context.Context, tokenID uint64) (domain.Token, error)
	ListTokens(ctx context.Context, opts domain.ListOpts) ([]domain.Token, error)
	CountTokens(ctx context.Context) (int64, error)
}

// TokenHandler serves token-related HTTP endpoints.
type TokenHandler struct {
	tokens TokenService
	auth   CallerAuth
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler with the given service and logger.
func NewTokenHandler(tokens TokenService, auth CallerAuth, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{
		tokens: tokens,
		auth:   auth,
		logger: logger,
	}
}

type mintRequest struct {
	callerRequest
	Metadata string `json:"metadata"`
}

// MintToken creates a new token owned by the caller.
// POST /api/tokens
func (h *TokenHandler) MintToken(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, err := h.auth.Resolve("mint", 0, 0, req.callerRequest)
	if err != nil {
		writeCallerError(w, err)
		return
	}

	token, err := h.tokens.MintToken(r.Context(), caller, req.Metadata)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: mint token failed",
			slog.String("caller", caller.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// GetToken returns a single token by its identifier.
// GET /api/tokens/{id}
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseTokenID(pathParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	token, err := h.tokens.GetToken(r.Context(), tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get token failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get token")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// listTokensResponse wraps the list endpoint output with paging metadata.
type listTokensResponse struct {
	Tokens []domain.Token `json:"tokens"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListTokens returns minted tokens with pagination. Total is the full count
// of minted tokens so clients can page.
// GET /api/tokens?limit=50&offset=0
func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	tokens, err := h.tokens.ListTokens(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list tokens failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	total, err := h.tokens.CountTokens(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count tokens failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	writeJSON(w, http.StatusOK, listTokensResponse{
		Tokens: tokens,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// writeCallerError maps caller resolution failures onto HTTP statuses.
func writeCallerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadCaller):
		writeError(w, http.StatusBadRequest, "missing or invalid caller address")
	case errors.Is(err, errBadSignature):
		writeError(w, http.StatusUnauthorized, "signature verification failed")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
