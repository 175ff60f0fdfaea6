package employees

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	ErrNotFound   = errors.New("employee not found")
	ErrValidation = errors.New("invalid employee")
)

// Employee is a staff record. It is not linked to a login account.
type Employee struct {
	ID        int64  `json:"id" yaml:"-"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
}

func (e *Employee) Validate() error {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.Email = strings.TrimSpace(e.Email)
	if e.FirstName == "" || e.LastName == "" || e.Email == "" {
		return fmt.Errorf("%w: first name, last name and email are required", ErrValidation)
	}
	if _, err := mail.ParseAddress(e.Email); err != nil {
		return fmt.Errorf("%w: email %q is not valid", ErrValidation, e.Email)
	}
	return nil
}
