package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"firmowy/internal/db"
)

type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrRoleNotFound  = errors.New("role not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrRoleNameTaken = errors.New("role name already taken")
	ErrMissingField  = errors.New("missing username or password")
	ErrEmptyRoleName = errors.New("role name is required")
	ErrLastManager   = errors.New("at least one user must keep the Manager role")
	ErrProtectedRole = errors.New("the Manager role cannot be renamed or deleted")
)

const userColumns = `id, username, first_name, last_name, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return s.getOne(ctx, q, username)
}

func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.getOne(ctx, q, id)
}

func (s *Store) getOne(ctx context.Context, q string, arg any) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	roles, err := s.rolesOf(ctx, []int64{u.ID})
	if err != nil {
		return nil, err
	}
	u.Roles = roles[u.ID]
	return u, nil
}

// List returns every user with roles, ordered by username.
func (s *Store) List(ctx context.Context) ([]User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY username`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	var ids []int64
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}

	roles, err := s.rolesOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
	}
	return users, nil
}

func (s *Store) rolesOf(ctx context.Context, userIDs []int64) (map[int64][]Role, error) {
	const q = `
		SELECT ur.user_id, r.id, r.name, r.description
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY r.name
	`
	rows, err := s.db.QueryContext(ctx, q, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Role, len(userIDs))
	for rows.Next() {
		var uid int64
		var r Role
		if err := rows.Scan(&uid, &r.ID, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		out[uid] = append(out[uid], r)
	}
	return out, rows.Err()
}

// Create hashes the password with bcrypt and inserts the user together with
// its role memberships.
func (s *Store) Create(ctx context.Context, nu NewUser) (*User, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	if nu.Username == "" || nu.Password == "" {
		return nil, ErrMissingField
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	const insertUser = `
		INSERT INTO users (username, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	var u *User
	err = db.WithTx(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var err error
		u, err = scanUser(tx.QueryRowContext(ctx, insertUser, nu.Username, nu.FirstName, nu.LastName, string(hash)))
		if err != nil {
			return err
		}
		if len(nu.Roles) == 0 {
			return nil
		}
		const grant = `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = ANY($2)
			ON CONFLICT DO NOTHING
		`
		_, err = tx.ExecContext(ctx, grant, u.ID, pq.Array(nu.Roles))
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user %q: %w", nu.Username, err)
	}
	return s.GetByID(ctx, u.ID)
}

// SaveUser creates (id == 0) or edits a user and replaces its role
// memberships in one transaction. On edit an empty password keeps the stored
// hash. The save is refused with ErrLastManager when it would leave no user
// holding the Manager role.
func (s *Store) SaveUser(ctx context.Context, id int64, f UserForm) (*User, error) {
	f.Username = strings.TrimSpace(f.Username)
	if f.Username == "" || (id == 0 && f.Password == "") {
		return nil, ErrMissingField
	}
	var hash string
	if f.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(f.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hash = string(b)
	}

	err := db.WithTx(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		managerID, before, err := lockManagerRole(ctx, tx)
		if err != nil {
			return err
		}
		if id == 0 {
			const q = `
				INSERT INTO users (username, first_name, last_name, password_hash)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`
			if err := tx.QueryRowContext(ctx, q, f.Username, f.FirstName, f.LastName, hash).Scan(&id); err != nil {
				return err
			}
		} else {
			const q = `
				UPDATE users
				SET username = $2, first_name = $3, last_name = $4,
				    password_hash = COALESCE(NULLIF($5, ''), password_hash)
				WHERE id = $1
			`
			res, err := tx.ExecContext(ctx, q, id, f.Username, f.FirstName, f.LastName, hash)
			if err != nil {
				return err
			}
			if err := expectOne(res, ErrUserNotFound); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
				return err
			}
		}
		if len(f.RoleIDs) > 0 {
			const grant = `
				INSERT INTO user_roles (user_id, role_id)
				SELECT $1, id FROM roles WHERE id = ANY($2)
				ON CONFLICT DO NOTHING
			`
			if _, err := tx.ExecContext(ctx, grant, id, pq.Array(f.RoleIDs)); err != nil {
				return fmt.Errorf("assign roles: %w", err)
			}
		}
		return keepsManager(ctx, tx, managerID, before)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes the user. Deleting the last holder of the Manager role is
// refused with ErrLastManager.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		managerID, before, err := lockManagerRole(ctx, tx)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := expectOne(res, ErrUserNotFound); err != nil {
			return err
		}
		return keepsManager(ctx, tx, managerID, before)
	})
}

// lockManagerRole locks the Manager role row so concurrent saves serialise on
// it, and returns its id with the current number of holders. A missing role
// yields id 0.
func lockManagerRole(ctx context.Context, tx db.DBTX) (id int64, holders int, err error) {
	err = tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1 FOR UPDATE`, ManagerRole).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock manager role: %w", err)
	}
	holders, err = countHolders(ctx, tx, id)
	return id, holders, err
}

func keepsManager(ctx context.Context, tx db.DBTX, managerID int64, before int) error {
	if managerID == 0 || before == 0 {
		return nil
	}
	after, err := countHolders(ctx, tx, managerID)
	if err != nil {
		return err
	}
	if after == 0 {
		return ErrLastManager
	}
	return nil
}

func countHolders(ctx context.Context, tx db.DBTX, roleID int64) (int, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count role holders: %w", err)
	}
	return n, nil
}

// GrantRole adds the named role to the user. Granting a role the user
// already has is a no-op.
func (s *Store) GrantRole(ctx context.Context, username, roleName string) error {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	r, err := s.RoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	const q = `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err = s.db.ExecContext(ctx, q, u.ID, r.ID)
	return err
}

func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *Store) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.roleWhere(ctx, `id = $1`, id)
}

func (s *Store) RoleByName(ctx context.Context, name string) (*Role, error) {
	return s.roleWhere(ctx, `name = $1`, name)
}

func (s *Store) roleWhere(ctx context.Context, cond string, arg any) (*Role, error) {
	r := &Role{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM roles WHERE `+cond, arg).
		Scan(&r.ID, &r.Name, &r.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyRoleName
	}
	r := &Role{}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING id, name, description`,
		name, description,
	).Scan(&r.ID, &r.Name, &r.Description)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrRoleNameTaken
		}
		return nil, err
	}
	return r, nil
}

// UpdateRole renames or redescribes a role. The Manager role keeps its name;
// renaming it returns ErrProtectedRole.
func (s *Store) UpdateRole(ctx context.Context, r Role) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return ErrEmptyRoleName
	}
	err := db.WithTx(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		current, err := lockRole(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		if current == ManagerRole && r.Name != ManagerRole {
			return ErrProtectedRole
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE roles SET name = $2, description = $3 WHERE id = $1`, r.ID, r.Name, r.Description)
		return err
	})
	if db.IsUniqueViolation(err) {
		return ErrRoleNameTaken
	}
	return err
}

func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		current, err := lockRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == ManagerRole {
			return ErrProtectedRole
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
		return err
	})
}

func lockRole(ctx context.Context, tx db.DBTX, id int64) (string, error) {
	var name string
	err := tx.QueryRowContext(ctx, `SELECT name FROM roles WHERE id = $1 FOR UPDATE`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRoleNotFound
	}
	return name, err
}

// EnsureRole returns the role with the given name, creating it when absent.
func (s *Store) EnsureRole(ctx context.Context, name, description string) (*Role, error) {
	const q = `
		INSERT INTO roles (name, description) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, description
	`
	r := &Role{}
	if err := s.db.QueryRowContext(ctx, q, name, description).Scan(&r.ID, &r.Name, &r.Description); err != nil {
		return nil, fmt.Errorf("ensure role %q: %w", name, err)
	}
	return r, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
