package httpserver

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/gorilla/mux"

	"firmowy/internal/auth"
	"firmowy/internal/bills"
	"firmowy/internal/employees"
	"firmowy/internal/glossary"
	"firmowy/internal/httpx"
	"firmowy/internal/tasks"
)

// Registrar mounts additional routes, such as the admin backend.
type Registrar interface {
	Register(r *mux.Router)
}

type Deps struct {
	Logger         *slog.Logger
	DB             Pinger
	Auth           *auth.Service
	Users          UserLister
	Tasks          *tasks.Service
	Bills          bills.Reader
	Definitions    glossary.Lister
	Employees      employees.Lister
	Admin          Registrar
	AllowedOrigins []string
}

// both registers path with and without the trailing slash.
func both(r *mux.Router, path string, h http.Handler, methods ...string) {
	path = strings.TrimSuffix(path, "/")
	r.Handle(path, h).Methods(methods...)
	r.Handle(path+"/", h).Methods(methods...)
}

func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check
	r.Handle("/healthz", healthHandler(d.DB, d.Logger)).Methods(http.MethodGet)

	// Auth
	both(r, "/api/token", tokenHandler(d.Auth, d.Logger), http.MethodPost)

	secured := auth.JWTMiddleware(d.Auth, d.Logger)
	api := func(path string, h http.Handler, methods ...string) {
		both(r, path, secured(h), methods...)
	}

	api("/api/me", http.HandlerFunc(meHandler), http.MethodGet)
	api("/api/users", usersHandler(d.Users, d.Logger), http.MethodGet)

	// Tasks
	th := &tasks.Handler{Service: d.Tasks, Logger: d.Logger}
	api("/api/tasks", http.HandlerFunc(th.List), http.MethodGet)
	api("/api/tasks", http.HandlerFunc(th.Create), http.MethodPost)
	api("/api/tasks/{id}", http.HandlerFunc(th.Get), http.MethodGet)
	api("/api/tasks/{id}", http.HandlerFunc(th.Patch), http.MethodPatch)
	api("/api/staff/tasks", auth.RequireManager(http.HandlerFunc(th.Workloads)), http.MethodGet)

	// Read-only resources
	bh := &bills.Handler{Store: d.Bills, Logger: d.Logger}
	api("/api/bills", http.HandlerFunc(bh.List), http.MethodGet)
	api("/api/bills/summary", http.HandlerFunc(bh.Summary), http.MethodGet)
	api("/api/definitions", &glossary.ListHandler{Store: d.Definitions, Logger: d.Logger}, http.MethodGet)
	api("/api/employees", &employees.ListHandler{Store: d.Employees, Logger: d.Logger}, http.MethodGet)

	if d.Admin != nil {
		d.Admin.Register(r)
	}

	var h http.Handler = r
	h = withCORS(d.AllowedOrigins, h)
	h = withRecover(d.Logger, h)
	h = withAccessLog(d.Logger, h)
	h = withRequestID(h)
	return h
}
