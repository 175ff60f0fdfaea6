package bills

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"firmowy/internal/timex"
)

// The API only reports bills dated inside this window, both ends inclusive.
var (
	WindowStart = timex.NewDate(2025, time.January, 1)
	WindowEnd   = timex.NewDate(2026, time.December, 31)
)

var (
	ErrNotFound   = errors.New("bill not found")
	ErrValidation = errors.New("invalid bill")
)

type Bill struct {
	ID          int64      `json:"id"`
	Category    string     `json:"category"`
	Amount      float64    `json:"amount"`
	Date        timex.Date `json:"date"`
	Description *string    `json:"description"`
}

// Year is derived from Date; it is not stored.
func (b Bill) Year() int { return b.Date.Year() }

func (b Bill) MarshalJSON() ([]byte, error) {
	type plain Bill
	return json.Marshal(struct {
		plain
		Year int `json:"year"`
	}{plain(b), b.Year()})
}

func (b *Bill) Validate() error {
	b.Category = strings.TrimSpace(b.Category)
	if b.Category == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if b.Description != nil && strings.TrimSpace(*b.Description) == "" {
		b.Description = nil
	}
	b.Amount = roundCents(b.Amount)
	return nil
}

// Amounts are NUMERIC(10, 2) in the database; they are read as text and
// kept at cent precision so sums like 0.10 + 0.20 stay 0.30.
func roundCents(x float64) float64 {
	return math.Round(x*100) / 100
}

func parseAmount(s string) (float64, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return roundCents(x), nil
}

// Total is the sum of bill amounts for one category in one year.
type Total struct {
	Year     int     `json:"year"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
}
