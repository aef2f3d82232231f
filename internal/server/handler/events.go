package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mintbay/marketd/internal/domain"
)

// EventService defines the methods the event handler requires from the
// service layer.
type EventService interface {
	ListEvents(ctx context.Context, tokenID uint64, kind domain.EventKind, opts domain.ListOpts) ([]domain.MarketEvent, error)
}

// EventHandler serves the event log endpoint.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler with the given service and logger.
func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger,
	}
}

// listEventsResponse wraps the list endpoint output with paging metadata.
type listEventsResponse struct {
	Events []domain.MarketEvent `json:"events"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ListEvents returns the marketplace event log in sequence order, optionally
// filtered by token or kind.
// GET /api/events?token_id=1&kind=minted&limit=50&offset=0
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	q := r.URL.Query()

	var tokenID uint64
	if v := q.Get("token_id"); v != "" {
		id, ok := parseTokenID(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid token_id")
			return
		}
		tokenID = id
	}

	var kind domain.EventKind
	switch v := q.Get("kind"); v {
	case "":
	case string(domain.EventMinted), string(domain.EventListed), string(domain.EventTransferred):
		kind = domain.EventKind(v)
	default:
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}

	events, err := h.events.ListEvents(r.Context(), tokenID, kind, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, listEventsResponse{
		Events: events,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}
