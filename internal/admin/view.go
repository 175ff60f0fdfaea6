package admin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"firmowy/internal/auth"
)

// View is one manageable resource in the admin backend.
type View interface {
	// Name is the URL segment, e.g. "tasks" in /admin/tasks/.
	Name() string
	Title() string
	ManagerOnly() bool
	Columns() []string
	List(ctx context.Context) ([]Row, error)
	// Form returns the fields for a new record when id is 0.
	Form(ctx context.Context, actor *auth.User, id int64) ([]Field, error)
	Save(ctx context.Context, actor *auth.User, id int64, form url.Values) error
	Delete(ctx context.Context, id int64) error
}

type Row struct {
	ID    int64
	Cells []string
}

type Option struct {
	Value string
	Label string
}

const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldPassword = "password"
	FieldDate     = "date"
	FieldNumber   = "number"
	FieldEmail    = "email"
	FieldSelect   = "select"
	FieldMulti    = "multiselect"
)

type Field struct {
	Name     string
	Label    string
	Type     string
	Value    string
	Values   []string
	Options  []Option
	Required bool
	Disabled bool
	Help     string
}

// Selected reports whether value is chosen in a select or multiselect.
func (f Field) Selected(value string) bool {
	if f.Type == FieldMulti {
		for _, v := range f.Values {
			if v == value {
				return true
			}
		}
		return false
	}
	return f.Value == value
}

// overlay copies submitted values back into fields so a rejected form is
// shown with what the user typed. Passwords are never echoed.
func overlay(fields []Field, form url.Values) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		switch {
		case f.Disabled, f.Type == FieldPassword:
		case f.Type == FieldMulti:
			f.Values = form[f.Name]
		default:
			f.Value = form.Get(f.Name)
		}
		out[i] = f
	}
	return out
}

// ErrBadInput marks form values that could not be parsed.
var ErrBadInput = errors.New("invalid input")

func formInt64s(form url.Values, name string) ([]int64, error) {
	values := form[name]
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadInput, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formFloat(form url.Values, name string) (float64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(form.Get(name)), ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadInput, name)
	}
	return f, nil
}

func idString(id int64) string { return strconv.FormatInt(id, 10) }
