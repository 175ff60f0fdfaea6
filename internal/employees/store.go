package employees

import (
	"context"
	"database/sql"
	"errors"
)

type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// List returns employees ordered by last name, then first name.
func (s *Store) List(ctx context.Context) ([]Employee, error) {
	const q = `SELECT id, first_name, last_name, email FROM employees ORDER BY last_name, first_name, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Employee{}
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int64) (*Employee, error) {
	e := &Employee{}
	err := s.db.QueryRowContext(ctx, `SELECT id, first_name, last_name, email FROM employees WHERE id = $1`, id).
		Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) Create(ctx context.Context, e Employee) (*Employee, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	const q = `INSERT INTO employees (first_name, last_name, email) VALUES ($1, $2, $3) RETURNING id`
	if err := s.db.QueryRowContext(ctx, q, e.FirstName, e.LastName, e.Email).Scan(&e.ID); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) Update(ctx context.Context, e Employee) error {
	if err := e.Validate(); err != nil {
		return err
	}
	const q = `UPDATE employees SET first_name = $2, last_name = $3, email = $4 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, e.ID, e.FirstName, e.LastName, e.Email)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n)
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
