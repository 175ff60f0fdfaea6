// Package admin is the server-rendered backend for managing records by
// hand. It authenticates with a signed session cookie and hides the
// manager-only views from everyone else.
package admin

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"firmowy/internal/auth"
	"firmowy/internal/bills"
	"firmowy/internal/employees"
	"firmowy/internal/glossary"
	"firmowy/internal/httpx"
	"firmowy/internal/tasks"
	"firmowy/internal/timex"
)

const SessionCookie = "firmowy_session"

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"login.html", "index.html", "list.html", "form.html", "staff_tasks.html", "error.html"}

type WorkloadSource interface {
	ByAssignee(ctx context.Context) ([]tasks.Workload, error)
}

type Config struct {
	Auth         *auth.Service
	SessionTTL   time.Duration
	SecureCookie bool
	Views        []View
	Workloads    WorkloadSource
	Logger       *slog.Logger
}

type Admin struct {
	cfg   Config
	views map[string]View
	order []View
	tmpl  map[string]*template.Template
}

func New(cfg Config) (*Admin, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 8 * time.Hour
	}
	a := &Admin{cfg: cfg, views: map[string]View{}, tmpl: map[string]*template.Template{}}
	for _, v := range cfg.Views {
		if _, dup := a.views[v.Name()]; dup {
			return nil, fmt.Errorf("admin: duplicate view %q", v.Name())
		}
		a.views[v.Name()] = v
		a.order = append(a.order, v)
	}
	for _, p := range pages {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+p)
		if err != nil {
			return nil, fmt.Errorf("admin: parse %s: %w", p, err)
		}
		a.tmpl[p] = t
	}
	return a, nil
}

// Register mounts the admin and staff pages.
func (a *Admin) Register(r *mux.Router) {
	r.HandleFunc("/admin/login", a.loginPage).Methods(http.MethodGet)
	r.HandleFunc("/admin/login", a.login).Methods(http.MethodPost)
	r.HandleFunc("/admin/logout", a.logout).Methods(http.MethodGet, http.MethodPost)

	r.Handle("/admin", a.session(a.index)).Methods(http.MethodGet)
	r.Handle("/admin/", a.session(a.index)).Methods(http.MethodGet)
	r.Handle("/admin/{view}", a.session(a.list)).Methods(http.MethodGet)
	r.Handle("/admin/{view}/", a.session(a.list)).Methods(http.MethodGet)
	r.Handle("/admin/{view}/new", a.session(a.form)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/admin/{view}/{id:[0-9]+}/edit", a.session(a.form)).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/admin/{view}/{id:[0-9]+}/delete", a.session(a.delete)).Methods(http.MethodPost)

	r.Handle("/staff/tasks", a.session(a.staffTasks)).Methods(http.MethodGet)
	r.Handle("/staff/tasks/", a.session(a.staffTasks)).Methods(http.MethodGet)
}

type navItem struct {
	Name  string
	Title string
}

type page struct {
	Title  string
	User   *auth.User
	Nav    []navItem
	Flash  string
	Error  string
	Next   string
	View   navItem
	Cols   []string
	Rows   []Row
	Fields []Field
	Action string
	ID     int64
	Staff  []tasks.Workload
}

func (a *Admin) nav(u *auth.User) []navItem {
	items := make([]navItem, 0, len(a.order))
	for _, v := range a.order {
		if v.ManagerOnly() && !auth.IsManager(u) {
			continue
		}
		items = append(items, navItem{Name: v.Name(), Title: v.Title()})
	}
	return items
}

func (a *Admin) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if p.User != nil {
		p.Nav = a.nav(p.User)
	}
	var buf bytes.Buffer
	if err := a.tmpl[name].ExecuteTemplate(&buf, "layout", p); err != nil {
		a.cfg.Logger.Error("render admin page", "page", name, "err", err, "request_id", httpx.RequestID(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (a *Admin) fail(w http.ResponseWriter, r *http.Request, u *auth.User, status int, msg string) {
	a.render(w, r, status, "error.html", page{Title: http.StatusText(status), User: u, Error: msg})
}

// session requires a valid session cookie and puts its user in the
// context. Browsers without one are sent to the login page.
func (a *Admin) session(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err == nil {
			user, err := a.cfg.Auth.ResolveSession(r.Context(), c.Value)
			if err == nil {
				next(w, r.WithContext(auth.WithUser(r.Context(), user)))
				return
			}
			if !errors.Is(err, auth.ErrInvalidToken) {
				a.cfg.Logger.Error("resolve session", "err", err, "request_id", httpx.RequestID(r.Context()))
				a.fail(w, r, nil, http.StatusInternalServerError, "Something went wrong.")
				return
			}
			a.clearCookie(w)
		}
		target := "/admin/login?next=" + url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

func (a *Admin) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Admin) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeNext keeps post-login redirects on this site's admin pages.
func safeNext(next string) string {
	if (strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "/staff/")) &&
		!strings.HasPrefix(next, "/admin/login") && !strings.Contains(next, "//") {
		return next
	}
	return "/admin/"
}

func (a *Admin) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "login.html", page{Title: "Log in", Next: safeNext(r.URL.Query().Get("next"))})
}

func (a *Admin) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.render(w, r, http.StatusBadRequest, "login.html", page{Title: "Log in", Error: "Malformed form."})
		return
	}
	next := safeNext(r.PostForm.Get("next"))
	user, err := a.cfg.Auth.CheckPassword(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		status, msg := http.StatusUnauthorized, "Incorrect username or password."
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			a.cfg.Logger.Error("admin login", "err", err, "request_id", httpx.RequestID(r.Context()))
			status, msg = http.StatusInternalServerError, "Something went wrong, try again."
		}
		a.render(w, r, status, "login.html", page{Title: "Log in", Error: msg, Next: next})
		return
	}
	token, err := a.cfg.Auth.IssueSessionToken(user, a.cfg.SessionTTL)
	if err != nil {
		a.cfg.Logger.Error("issue session", "err", err)
		a.fail(w, r, nil, http.StatusInternalServerError, "Something went wrong.")
		return
	}
	a.setCookie(w, token)
	a.cfg.Logger.Info("admin login", "username", user.Username, "request_id", httpx.RequestID(r.Context()))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (a *Admin) logout(w http.ResponseWriter, r *http.Request) {
	a.clearCookie(w)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

func (a *Admin) index(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	a.render(w, r, http.StatusOK, "index.html", page{Title: "Administration", User: u})
}

// lookup resolves the {view} variable and applies the manager-only guard.
func (a *Admin) lookup(w http.ResponseWriter, r *http.Request) (View, *auth.User, bool) {
	u, _ := auth.UserFromContext(r.Context())
	v, ok := a.views[mux.Vars(r)["view"]]
	if !ok {
		a.fail(w, r, u, http.StatusNotFound, "No such page.")
		return nil, u, false
	}
	if v.ManagerOnly() && !auth.IsManager(u) {
		a.fail(w, r, u, http.StatusForbidden, "Only managers can open "+v.Title()+".")
		return nil, u, false
	}
	return v, u, true
}

func (a *Admin) list(w http.ResponseWriter, r *http.Request) {
	v, u, ok := a.lookup(w, r)
	if !ok {
		return
	}
	rows, err := v.List(r.Context())
	if err != nil {
		a.internal(w, r, u, "list "+v.Name(), err)
		return
	}
	a.render(w, r, http.StatusOK, "list.html", page{
		Title: v.Title(),
		User:  u,
		View:  navItem{Name: v.Name(), Title: v.Title()},
		Cols:  v.Columns(),
		Rows:  rows,
		Flash: flashText(r.URL.Query().Get("msg")),
	})
}

func flashText(code string) string {
	switch code {
	case "saved":
		return "Saved."
	case "deleted":
		return "Deleted."
	}
	return ""
}

func (a *Admin) form(w http.ResponseWriter, r *http.Request) {
	v, u, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var id int64
	action := "/admin/" + v.Name() + "/new"
	if s := mux.Vars(r)["id"]; s != "" {
		id, _ = strconv.ParseInt(s, 10, 64)
		action = "/admin/" + v.Name() + "/" + s + "/edit"
	}

	fields, err := v.Form(r.Context(), u, id)
	if err != nil {
		a.storeErr(w, r, u, "load "+v.Name(), err)
		return
	}
	p := page{
		Title:  v.Title(),
		User:   u,
		View:   navItem{Name: v.Name(), Title: v.Title()},
		Fields: fields,
		Action: action,
		ID:     id,
	}
	if r.Method == http.MethodGet {
		a.render(w, r, http.StatusOK, "form.html", p)
		return
	}

	if err := r.ParseForm(); err != nil {
		p.Error = "Malformed form."
		a.render(w, r, http.StatusBadRequest, "form.html", p)
		return
	}
	if err := v.Save(r.Context(), u, id, r.PostForm); err != nil {
		status, msg, known := classify(err)
		if !known {
			a.internal(w, r, u, "save "+v.Name(), err)
			return
		}
		p.Fields = overlay(fields, r.PostForm)
		p.Error = msg
		a.render(w, r, status, "form.html", p)
		return
	}
	http.Redirect(w, r, "/admin/"+v.Name()+"/?msg=saved", http.StatusSeeOther)
}

func (a *Admin) delete(w http.ResponseWriter, r *http.Request) {
	v, u, ok := a.lookup(w, r)
	if !ok {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err := v.Delete(r.Context(), id); err != nil {
		a.storeErr(w, r, u, "delete "+v.Name(), err)
		return
	}
	http.Redirect(w, r, "/admin/"+v.Name()+"/?msg=deleted", http.StatusSeeOther)
}

func (a *Admin) staffTasks(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	if a.cfg.Workloads == nil {
		a.fail(w, r, u, http.StatusNotFound, "No such page.")
		return
	}
	staff, err := a.cfg.Workloads.ByAssignee(r.Context())
	if err != nil {
		a.internal(w, r, u, "staff tasks", err)
		return
	}
	a.render(w, r, http.StatusOK, "staff_tasks.html", page{Title: "Staff tasks", User: u, Staff: staff})
}

func (a *Admin) internal(w http.ResponseWriter, r *http.Request, u *auth.User, op string, err error) {
	a.cfg.Logger.Error(op, "err", err, "request_id", httpx.RequestID(r.Context()))
	a.fail(w, r, u, http.StatusInternalServerError, "Something went wrong.")
}

func (a *Admin) storeErr(w http.ResponseWriter, r *http.Request, u *auth.User, op string, err error) {
	if status, msg, known := classify(err); known {
		a.fail(w, r, u, status, msg)
		return
	}
	a.internal(w, r, u, op, err)
}

var notFound = []error{
	tasks.ErrNotFound, bills.ErrNotFound, employees.ErrNotFound, glossary.ErrNotFound,
	auth.ErrUserNotFound, auth.ErrRoleNotFound,
}

var invalid = []error{
	ErrBadInput, timex.ErrInvalidDate,
	tasks.ErrValidation, bills.ErrValidation, employees.ErrValidation, glossary.ErrValidation,
	auth.ErrUsernameTaken, auth.ErrRoleNameTaken, auth.ErrMissingField, auth.ErrEmptyRoleName,
	auth.ErrLastManager, auth.ErrProtectedRole,
}

// classify maps domain errors to a status and a message fit for the page.
func classify(err error) (int, string, bool) {
	if errors.Is(err, tasks.ErrForbidden) {
		return http.StatusForbidden, tasks.ErrForbidden.Error(), true
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound, target.Error(), true
		}
	}
	for _, target := range invalid {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error(), true
		}
	}
	return 0, "", false
}
