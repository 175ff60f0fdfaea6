package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"firmowy/internal/auth"
	"firmowy/internal/bills"
	"firmowy/internal/employees"
	"firmowy/internal/glossary"
	"firmowy/internal/tasks"
	"firmowy/internal/timex"
)

type userDir map[string]*auth.User

func (d userDir) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	u, ok := d[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d userDir) List(context.Context) ([]auth.User, error) {
	return []auth.User{*d["admin"], *d["adam"]}, nil
}

type taskRepo struct {
	tasks map[int64]*tasks.Task
}

func (r *taskRepo) List(context.Context) ([]tasks.Task, error) {
	out := []tasks.Task{}
	for id := int64(1); id <= int64(len(r.tasks)); id++ {
		out = append(out, *r.tasks[id])
	}
	return out, nil
}

func (r *taskRepo) Get(_ context.Context, id int64) (*tasks.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *taskRepo) Create(_ context.Context, t tasks.Task, ids []int64) (*tasks.Task, error) {
	t.ID = int64(len(r.tasks) + 1)
	t.AssignedTo = []tasks.Assignee{}
	for _, id := range ids {
		t.AssignedTo = append(t.AssignedTo, tasks.Assignee{ID: id})
	}
	r.tasks[t.ID] = &t
	return &t, nil
}

func (r *taskRepo) Update(_ context.Context, id int64, p tasks.Patch) (*tasks.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	if err := p.Apply(t); err != nil {
		return nil, err
	}
	if p.AssigneeIDs != nil {
		t.AssignedTo = []tasks.Assignee{}
		for _, id := range *p.AssigneeIDs {
			t.AssignedTo = append(t.AssignedTo, tasks.Assignee{ID: id})
		}
	}
	cp := *t
	return &cp, nil
}

func (r *taskRepo) Delete(context.Context, int64) error { return nil }

func (r *taskRepo) ByAssignee(context.Context) ([]tasks.Workload, error) {
	return []tasks.Workload{{User: tasks.Assignee{ID: 2, Username: "adam"}}}, nil
}

type billReader struct{ from, to timex.Date }

func (b *billReader) ListBetween(_ context.Context, from, to timex.Date) ([]bills.Bill, error) {
	b.from, b.to = from, to
	return []bills.Bill{{ID: 1, Category: "Prąd", Amount: 120.5, Date: timex.NewDate(2025, time.January, 10)}}, nil
}

func (b *billReader) Summary(context.Context, timex.Date, timex.Date) ([]bills.Total, error) {
	return []bills.Total{{Year: 2025, Category: "Prąd", Amount: 120.5, Count: 1}}, nil
}

type definitions []glossary.Definition

func (d definitions) List(context.Context) ([]glossary.Definition, error) { return d, nil }

type staff []employees.Employee

func (s staff) List(context.Context) ([]employees.Employee, error) { return s, nil }

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type fixture struct {
	handler http.Handler
	bills   *billReader
}

func newFixture(t *testing.T, db Pinger, opts ...func(*Deps)) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	dir := userDir{
		"admin": {ID: 1, Username: "admin", FirstName: "Szef", LastName: "Systemu", PasswordHash: string(hash), Roles: []auth.Role{{ID: 1, Name: auth.ManagerRole}}},
		"adam":  {ID: 2, Username: "adam", FirstName: "Adam", LastName: "Kowalski", PasswordHash: string(hash)},
	}
	br := &billReader{}
	deps := Deps{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:             db,
		Auth:           auth.NewService(dir, "router-secret", time.Minute),
		Users:          dir,
		Tasks:          tasks.NewService(&taskRepo{tasks: map[int64]*tasks.Task{}}),
		Bills:          br,
		Definitions:    definitions{{ID: 1, Term: "VAT", Definition: "Podatek"}},
		Employees:      staff{{ID: 1, FirstName: "Jan", LastName: "Nowak", Email: "jan@example.com"}},
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &fixture{handler: NewRouter(deps), bills: br}
}

func (f *fixture) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) token(t *testing.T, username string) string {
	t.Helper()
	rec := f.request(t, http.MethodPost, "/api/token", "", `{"username":"`+username+`","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "bearer", out.TokenType)
	return out.AccessToken
}

func TestToken(t *testing.T) {
	f := newFixture(t, pinger{})

	rec := f.request(t, http.MethodPost, "/api/token/", "", `{"username":"adam","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"incorrect username or password"}`, rec.Body.String())

	rec = f.request(t, http.MethodPost, "/api/token", "", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	form := url.Values{"username": {"adam"}, "password": {"secret"}, "grant_type": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "access_token")
}

func TestMe(t *testing.T) {
	f := newFixture(t, pinger{})

	rec := f.request(t, http.MethodGet, "/api/me/", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = f.request(t, http.MethodGet, "/api/me/", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/me", f.token(t, "admin"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"username":"admin","first_name":"Szef","last_name":"Systemu","roles":[{"name":"Manager"}],"is_admin":true}`, rec.Body.String())
}

func TestUsers(t *testing.T) {
	f := newFixture(t, pinger{})
	rec := f.request(t, http.MethodGet, "/api/users/", f.token(t, "adam"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []userView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.True(t, out[0].IsAdmin)
	assert.False(t, out[1].IsAdmin)
	assert.Empty(t, out[1].Roles)
}

// adam cannot assign, admin can, and adam may still edit the task.
func TestTaskAssignmentScenario(t *testing.T) {
	f := newFixture(t, pinger{})
	adam, admin := f.token(t, "adam"), f.token(t, "admin")
	body := `{"title":"Raport","description":"Kwartalny","due_date":"2025-03-31","assigned_to_ids":[2]}`

	rec := f.request(t, http.MethodPost, "/api/tasks/", adam, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodPost, "/api/tasks/", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created tasks.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, []int64{2}, created.AssigneeIDs())
	assert.Equal(t, "2025-03-31", created.DueDate.String())

	rec = f.request(t, http.MethodPatch, "/api/tasks/1/", adam, `{"status":"done","due_date":""}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched tasks.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, tasks.StatusDone, patched.Status)
	assert.Nil(t, patched.DueDate)
	assert.Equal(t, []int64{2}, patched.AssigneeIDs())

	rec = f.request(t, http.MethodGet, "/api/tasks/7/", adam, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaffTasks_ManagerOnly(t *testing.T) {
	f := newFixture(t, pinger{})

	rec := f.request(t, http.MethodGet, "/api/staff/tasks/", f.token(t, "adam"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/staff/tasks/", f.token(t, "admin"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"user":{"id":2,"username":"adam","first_name":"","last_name":""},"tasks":[]}]`, rec.Body.String())
}

func TestReadOnlyResources(t *testing.T) {
	f := newFixture(t, pinger{})
	token := f.token(t, "adam")

	rec := f.request(t, http.MethodGet, "/api/bills/", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"year":2025`)
	assert.Equal(t, bills.WindowStart, f.bills.from)
	assert.Equal(t, bills.WindowEnd, f.bills.to)

	rec = f.request(t, http.MethodGet, "/api/bills/summary/", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/definitions/", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "VAT")

	rec = f.request(t, http.MethodGet, "/api/employees", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nowak")

	rec = f.request(t, http.MethodPost, "/api/bills/", token, `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/nothing/", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"not found"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	f := newFixture(t, pinger{})

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	f := newFixture(t, pinger{})

	rec := f.request(t, http.MethodGet, "/healthz", "", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestHealthz(t *testing.T) {
	rec := newFixture(t, pinger{}).request(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = newFixture(t, pinger{err: errors.New("down")}).request(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecover(t *testing.T) {
	h := withRecover(slog.New(slog.NewTextHandler(io.Discard, nil)), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type registrarFunc func(r *mux.Router)

func (f registrarFunc) Register(r *mux.Router) { f(r) }

func TestRouter_LogsPanickingRequest(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, pinger{}, func(d *Deps) {
		d.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
		d.Admin = registrarFunc(func(r *mux.Router) {
			r.HandleFunc("/admin/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
		})
	})

	rec := f.request(t, http.MethodGet, "/admin/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"panic in handler"`)
	assert.Contains(t, logs, `"msg":"http request"`)
	assert.Contains(t, logs, `"path":"/admin/boom"`)
	assert.Contains(t, logs, `"status":500`)
}
