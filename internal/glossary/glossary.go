// Package glossary stores the company's business definitions.
package glossary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"log/slog"

	"firmowy/internal/httpx"
)

var (
	ErrNotFound   = errors.New("definition not found")
	ErrValidation = errors.New("invalid definition")
)

type Definition struct {
	ID         int64  `json:"id" yaml:"-"`
	Term       string `json:"term" yaml:"term"`
	Definition string `json:"definition" yaml:"definition"`
}

func (d *Definition) Validate() error {
	d.Term = strings.TrimSpace(d.Term)
	d.Definition = strings.TrimSpace(d.Definition)
	if d.Term == "" || d.Definition == "" {
		return fmt.Errorf("%w: term and definition are required", ErrValidation)
	}
	return nil
}

type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// List returns all definitions ordered by term.
func (s *Store) List(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, term, definition FROM definitions ORDER BY term, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Definition{}
	for rows.Next() {
		var d Definition
		if err := rows.Scan(&d.ID, &d.Term, &d.Definition); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int64) (*Definition, error) {
	d := &Definition{}
	err := s.db.QueryRowContext(ctx, `SELECT id, term, definition FROM definitions WHERE id = $1`, id).
		Scan(&d.ID, &d.Term, &d.Definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) Create(ctx context.Context, d Definition) (*Definition, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO definitions (term, definition) VALUES ($1, $2) RETURNING id`,
		d.Term, d.Definition,
	).Scan(&d.ID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) Update(ctx context.Context, d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE definitions SET term = $2, definition = $3 WHERE id = $1`, d.ID, d.Term, d.Definition)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM definitions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM definitions`).Scan(&n)
	return n, err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type Lister interface {
	List(ctx context.Context) ([]Definition, error)
}

type ListHandler struct {
	Store  Lister
	Logger *slog.Logger
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defs, err := h.Store.List(r.Context())
	if err != nil {
		h.Logger.Error("list definitions", "err", err, "request_id", httpx.RequestID(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, defs)
}
