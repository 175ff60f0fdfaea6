package auth

import "time"

// ManagerRole is the only role name that grants extra capabilities.
const ManagerRole = "Manager"

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasRole reports whether a role named exactly name is among the user's
// loaded roles. The match is case-sensitive.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// IsManager is the single capability check used for task assignment and
// the manager-only admin views.
func IsManager(u *User) bool {
	return u != nil && u.HasRole(ManagerRole)
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) RoleIDs() []int64 {
	ids := make([]int64, 0, len(u.Roles))
	for _, r := range u.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// NewUser is the input for Store.Create. Roles are role names; unknown names
// are ignored.
type NewUser struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Roles     []string
}

// UserForm is the input for Store.SaveUser. RoleIDs replace the user's
// memberships; unknown ids are ignored.
type UserForm struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	RoleIDs   []int64
}
