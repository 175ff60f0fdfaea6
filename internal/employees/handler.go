package employees

import (
	"context"
	"net/http"

	"log/slog"

	"firmowy/internal/httpx"
)

type Lister interface {
	List(ctx context.Context) ([]Employee, error)
}

type ListHandler struct {
	Store  Lister
	Logger *slog.Logger
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context())
	if err != nil {
		h.Logger.Error("list employees", "err", err, "request_id", httpx.RequestID(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}
