package bills

import (
	"context"
	"database/sql"
	"errors"

	"firmowy/internal/timex"
)

type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

const billColumns = `id, category, amount, date, description`

func scanBill(row interface{ Scan(...any) error }) (Bill, error) {
	var b Bill
	var amount string
	var desc sql.NullString
	if err := row.Scan(&b.ID, &b.Category, &amount, &b.Date, &desc); err != nil {
		return Bill{}, err
	}
	var err error
	if b.Amount, err = parseAmount(amount); err != nil {
		return Bill{}, err
	}
	if desc.Valid {
		b.Description = &desc.String
	}
	return b, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Bill, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBetween returns bills dated in [from, to], ordered by date.
func (s *Store) ListBetween(ctx context.Context, from, to timex.Date) ([]Bill, error) {
	q := `SELECT ` + billColumns + ` FROM bills WHERE date >= $1 AND date <= $2 ORDER BY date, id`
	return s.query(ctx, q, from, to)
}

// List returns every bill, newest first.
func (s *Store) List(ctx context.Context) ([]Bill, error) {
	return s.query(ctx, `SELECT `+billColumns+` FROM bills ORDER BY date DESC, id DESC`)
}

func (s *Store) Get(ctx context.Context, id int64) (*Bill, error) {
	b, err := scanBill(s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) Create(ctx context.Context, b Bill) (*Bill, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO bills (category, amount, date, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := s.db.QueryRowContext(ctx, q, b.Category, b.Amount, b.Date, b.Description).Scan(&b.ID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) Update(ctx context.Context, b Bill) error {
	if err := b.Validate(); err != nil {
		return err
	}
	const q = `UPDATE bills SET category = $2, amount = $3, date = $4, description = $5 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, b.ID, b.Category, b.Amount, b.Date, b.Description)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills`).Scan(&n)
	return n, err
}

// Summary totals bills in [from, to] per year and category.
func (s *Store) Summary(ctx context.Context, from, to timex.Date) ([]Total, error) {
	const q = `
		SELECT EXTRACT(YEAR FROM date)::int AS year, category, ROUND(SUM(amount), 2)::text, COUNT(*)
		FROM bills
		WHERE date >= $1 AND date <= $2
		GROUP BY year, category
		ORDER BY year, category
	`
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Total{}
	for rows.Next() {
		var t Total
		var sum string
		if err := rows.Scan(&t.Year, &t.Category, &sum, &t.Count); err != nil {
			return nil, err
		}
		if t.Amount, err = parseAmount(sum); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
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
