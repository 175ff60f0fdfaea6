// Package seed prepares a fresh database: the Manager role, the two
// built-in accounts and optional sample data read from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"firmowy/internal/auth"
	"firmowy/internal/bills"
	"firmowy/internal/employees"
	"firmowy/internal/glossary"
	"firmowy/internal/timex"
)

type Users interface {
	EnsureRole(ctx context.Context, name, description string) (*auth.Role, error)
	GetByUsername(ctx context.Context, username string) (*auth.User, error)
	Create(ctx context.Context, nu auth.NewUser) (*auth.User, error)
	GrantRole(ctx context.Context, username, roleName string) error
}

type Bills interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, b bills.Bill) (*bills.Bill, error)
}

type Definitions interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, d glossary.Definition) (*glossary.Definition, error)
}

type Employees interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, e employees.Employee) (*employees.Employee, error)
}

type roleSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type userSpec struct {
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Roles     []string `yaml:"roles"`
}

type billSpec struct {
	Category    string  `yaml:"category"`
	Amount      float64 `yaml:"amount"`
	Date        string  `yaml:"date"`
	Description string  `yaml:"description"`
}

// File is the layout of the seed YAML.
type File struct {
	Roles       []roleSpec            `yaml:"roles"`
	Users       []userSpec            `yaml:"users"`
	Bills       []billSpec            `yaml:"bills"`
	Definitions []glossary.Definition `yaml:"definitions"`
	Employees   []employees.Employee  `yaml:"employees"`
}

// Accounts that always exist after seeding.
var builtinRoles = []roleSpec{
	{Name: auth.ManagerRole, Description: "Full access, can assign tasks"},
}

var builtinUsers = []userSpec{
	{Username: "admin", Password: "adminpassword", FirstName: "Szef", LastName: "Systemu", Roles: []string{auth.ManagerRole}},
	{Username: "adam", Password: "password", FirstName: "Adam", LastName: "Kowalski"},
}

func LoadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

type Seeder struct {
	Users       Users
	Bills       Bills
	Definitions Definitions
	Employees   Employees
	Logger      *slog.Logger
}

// Run seeds the built-ins and, when path names an existing file, its
// contents. A missing file is logged and skipped.
func (s *Seeder) Run(ctx context.Context, path string) error {
	var f File
	if path != "" {
		loaded, err := LoadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.Logger.Warn("seed file not found, using built-in accounts only", "path", path)
		case err != nil:
			return err
		default:
			f = loaded
		}
	}
	return s.Apply(ctx, f)
}

// Apply is idempotent: roles and users are created only when missing, and
// sample rows only go into empty tables.
func (s *Seeder) Apply(ctx context.Context, f File) error {
	for _, r := range append(append([]roleSpec{}, builtinRoles...), f.Roles...) {
		if r.Name == "" {
			continue
		}
		if _, err := s.Users.EnsureRole(ctx, r.Name, r.Description); err != nil {
			return err
		}
	}

	for _, u := range append(append([]userSpec{}, builtinUsers...), f.Users...) {
		if err := s.ensureUser(ctx, u); err != nil {
			return err
		}
	}

	if err := s.seedBills(ctx, f.Bills); err != nil {
		return fmt.Errorf("seed bills: %w", err)
	}
	if err := s.seedDefinitions(ctx, f.Definitions); err != nil {
		return fmt.Errorf("seed definitions: %w", err)
	}
	if err := s.seedEmployees(ctx, f.Employees); err != nil {
		return fmt.Errorf("seed employees: %w", err)
	}
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, u userSpec) error {
	if u.Username == "" || u.Password == "" {
		return nil
	}
	_, err := s.Users.GetByUsername(ctx, u.Username)
	switch {
	case err == nil:
		// Existing accounts keep their password but regain listed roles.
		for _, r := range u.Roles {
			if err := s.Users.GrantRole(ctx, u.Username, r); err != nil {
				return fmt.Errorf("grant %s to %s: %w", r, u.Username, err)
			}
		}
		return nil
	case !errors.Is(err, auth.ErrUserNotFound):
		return err
	}

	for _, r := range u.Roles {
		if _, err := s.Users.EnsureRole(ctx, r, ""); err != nil {
			return err
		}
	}
	if _, err := s.Users.Create(ctx, auth.NewUser{
		Username:  u.Username,
		Password:  u.Password,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     u.Roles,
	}); err != nil {
		return err
	}
	s.Logger.Info("seeded user", "username", u.Username, "roles", u.Roles)
	return nil
}

func (s *Seeder) seedBills(ctx context.Context, rows []billSpec) error {
	if len(rows) == 0 || s.Bills == nil {
		return nil
	}
	if n, err := s.Bills.Count(ctx); err != nil || n > 0 {
		return err
	}
	for _, row := range rows {
		date, err := timex.ParseDate(row.Date)
		if err != nil {
			return fmt.Errorf("bill %s: %w", row.Category, err)
		}
		b := bills.Bill{Category: row.Category, Amount: row.Amount, Date: date}
		if row.Description != "" {
			desc := row.Description
			b.Description = &desc
		}
		if _, err := s.Bills.Create(ctx, b); err != nil {
			return err
		}
	}
	s.Logger.Info("seeded sample bills", "count", len(rows))
	return nil
}

func (s *Seeder) seedDefinitions(ctx context.Context, defs []glossary.Definition) error {
	if len(defs) == 0 || s.Definitions == nil {
		return nil
	}
	if n, err := s.Definitions.Count(ctx); err != nil || n > 0 {
		return err
	}
	for _, d := range defs {
		if _, err := s.Definitions.Create(ctx, d); err != nil {
			return err
		}
	}
	s.Logger.Info("seeded definitions", "count", len(defs))
	return nil
}

func (s *Seeder) seedEmployees(ctx context.Context, list []employees.Employee) error {
	if len(list) == 0 || s.Employees == nil {
		return nil
	}
	if n, err := s.Employees.Count(ctx); err != nil || n > 0 {
		return err
	}
	for _, e := range list {
		if _, err := s.Employees.Create(ctx, e); err != nil {
			return err
		}
	}
	s.Logger.Info("seeded employees", "count", len(list))
	return nil
}
