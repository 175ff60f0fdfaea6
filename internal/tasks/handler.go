package tasks

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/gorilla/mux"

	"firmowy/internal/auth"
	"firmowy/internal/httpx"
)

type Handler struct {
	Service *Service
	Logger  *slog.Logger
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.fail(w, r, "list tasks", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.UserFromContext(r.Context())
	var in NewTask
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.Service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, "create task", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get task", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	actor, _ := auth.UserFromContext(r.Context())
	var p Patch
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.Service.Update(r.Context(), actor, id, p)
	if err != nil {
		h.fail(w, r, "update task", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

// Workloads lists every user with their assigned tasks. It is mounted
// behind auth.RequireManager.
func (h *Handler) Workloads(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ByAssignee(r.Context())
	if err != nil {
		h.fail(w, r, "list workloads", err)
		return
	}
	if list == nil {
		list = []Workload{}
	}
	for i := range list {
		if list[i].Tasks == nil {
			list[i].Tasks = []Task{}
		}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusNotFound, ErrNotFound.Error())
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, ErrForbidden.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.Logger.Error(op, "err", err, "request_id", httpx.RequestID(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
