package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"firmowy/internal/auth"
	"firmowy/internal/httpx"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// tokenHandler accepts JSON credentials or an OAuth2 password form.
func tokenHandler(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c credentials
		if httpx.IsForm(r) {
			if err := r.ParseForm(); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "malformed form body")
				return
			}
			c.Username, c.Password = r.PostForm.Get("username"), r.PostForm.Get("password")
		} else if err := httpx.DecodeJSON(r, &c); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		_, token, err := svc.Authenticate(r.Context(), c.Username, c.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httpx.WriteError(w, http.StatusUnauthorized, "incorrect username or password")
				return
			}
			logger.Error("authenticate", "err", err, "request_id", httpx.RequestID(r.Context()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

type roleView struct {
	Name string `json:"name"`
}

type userView struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Roles     []roleView `json:"roles"`
	IsAdmin   bool       `json:"is_admin"`
}

func viewOf(u *auth.User) userView {
	v := userView{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     make([]roleView, 0, len(u.Roles)),
		IsAdmin:   auth.IsManager(u),
	}
	for _, r := range u.Roles {
		v.Roles = append(v.Roles, roleView{Name: r.Name})
	}
	return v
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(u))
}

type UserLister interface {
	List(ctx context.Context) ([]auth.User, error)
}

func usersHandler(users UserLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context())
		if err != nil {
			logger.Error("list users", "err", err, "request_id", httpx.RequestID(r.Context()))
			httpx.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}
		out := make([]userView, 0, len(list))
		for i := range list {
			out = append(out, viewOf(&list[i]))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

func healthHandler(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check", "err", err)
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
