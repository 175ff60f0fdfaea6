package bills

import (
	"context"
	"net/http"

	"log/slog"

	"firmowy/internal/httpx"
	"firmowy/internal/timex"
)

// Reader is the read side of Store used by the API.
type Reader interface {
	ListBetween(ctx context.Context, from, to timex.Date) ([]Bill, error)
	Summary(ctx context.Context, from, to timex.Date) ([]Total, error)
}

type Handler struct {
	Store  Reader
	Logger *slog.Logger
}

// List serves the bills inside the reporting window.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListBetween(r.Context(), WindowStart, WindowEnd)
	if err != nil {
		h.Logger.Error("list bills", "err", err, "request_id", httpx.RequestID(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Store.Summary(r.Context(), WindowStart, WindowEnd)
	if err != nil {
		h.Logger.Error("bill summary", "err", err, "request_id", httpx.RequestID(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, totals)
}
