package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

// ListingService defines the methods the listing handler requires from the
// service layer.
type ListingService interface {
	ListToken(ctx context.Context, caller common.Address, tokenID, price uint64) (domain.Listing, error)
	CancelListing(ctx context.Context, caller common.Address, tokenID uint64) (domain.MarketEvent, error)
	GetListing(ctx context.Context, tokenID uint64) (domain.Listing, error)
	ListListings(ctx context.Context, opts domain.ListOpts) ([]domain.Listing, error)
	ListListingsBySeller(ctx context.Context, seller common.Address, opts domain.ListOpts) ([]domain.Listing, error)
}

// ListingHandler serves listing-related HTTP endpoints.
type ListingHandler struct {
	listings ListingService
	auth     CallerAuth
	logger   *slog.Logger
}

// NewListingHandler creates a ListingHandler with the given service and logger.
func NewListingHandler(listings ListingService, auth CallerAuth, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		listings: listings,
		auth:     auth,
		logger:   logger,
	}
}

type createListingRequest struct {
	callerRequest
	TokenID uint64 `json:"token_id"`
	Price   uint64 `json:"price"`
}

// CreateListing escrows the caller's token and lists it for sale.
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TokenID == 0 {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	caller, err := h.auth.Resolve("list", req.TokenID, req.Price, req.callerRequest)
	if err != nil {
		writeCallerError(w, err)
		return
	}

	listing, err := h.listings.ListToken(r.Context(), caller, req.TokenID, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPrice):
			writeError(w, http.StatusBadRequest, "price must be non-zero")
		case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrUnknownToken):
			writeError(w, http.StatusForbidden, "caller does not hold this token")
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "token is busy, retry")
		default:
			h.logger.ErrorContext(r.Context(), "handler: create listing failed",
				slog.Uint64("token_id", req.TokenID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create listing")
		}
		return
	}

	writeJSON(w, http.StatusCreated, listing)
}

type cancelListingRequest struct {
	callerRequest
}

// CancelListing delists the caller's token and returns its custody.
// DELETE /api/listings/{id}
func (h *ListingHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseTokenID(pathParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	var req cancelListingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, err := h.auth.Resolve("cancel", tokenID, 0, req.callerRequest)
	if err != nil {
		writeCallerError(w, err)
		return
	}

	ev, err := h.listings.CancelListing(r.Context(), caller, tokenID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotListed):
			writeError(w, http.StatusNotFound, "token is not listed")
		case errors.Is(err, domain.ErrNotSeller):
			writeError(w, http.StatusForbidden, "only the seller may cancel")
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "token is busy, retry")
		default:
			h.logger.ErrorContext(r.Context(), "handler: cancel listing failed",
				slog.Uint64("token_id", tokenID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel listing")
		}
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// GetListing returns the active listing for a token.
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := parseTokenID(pathParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	listing, err := h.listings.GetListing(r.Context(), tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token is not listed")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get listing failed",
			slog.Uint64("token_id", tokenID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// listListingsResponse wraps the list endpoint output with paging metadata.
type listListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListListings returns active listings with pagination, optionally filtered
// to one seller.
// GET /api/listings?limit=50&offset=0&seller=0x...
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		listings []domain.Listing
		err      error
	)
	if v := r.URL.Query().Get("seller"); v != "" {
		seller, ok := parseAddress(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid seller address")
			return
		}
		listings, err = h.listings.ListListingsBySeller(r.Context(), seller, opts)
	} else {
		listings, err = h.listings.ListListings(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list listings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}

	writeJSON(w, http.StatusOK, listListingsResponse{
		Listings: listings,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}
