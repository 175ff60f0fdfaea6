package admin

import (
	"context"
	"net/url"
	"strings"

	"firmowy/internal/auth"
)

type UserStore interface {
	List(ctx context.Context) ([]auth.User, error)
	GetByID(ctx context.Context, id int64) (*auth.User, error)
	SaveUser(ctx context.Context, id int64, f auth.UserForm) (*auth.User, error)
	Delete(ctx context.Context, id int64) error
	ListRoles(ctx context.Context) ([]auth.Role, error)
}

type usersView struct {
	store UserStore
}

func NewUsersView(store UserStore) View { return &usersView{store: store} }

func (v *usersView) Name() string      { return "users" }
func (v *usersView) Title() string     { return "Users" }
func (v *usersView) ManagerOnly() bool { return true }
func (v *usersView) Columns() []string {
	return []string{"Username", "Name", "Roles", "Manager"}
}

func (v *usersView) List(ctx context.Context) ([]Row, error) {
	users, err := v.store.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(users))
	for i := range users {
		u := &users[i]
		names := make([]string, 0, len(u.Roles))
		for _, r := range u.Roles {
			names = append(names, r.Name)
		}
		manager := "no"
		if auth.IsManager(u) {
			manager = "yes"
		}
		rows = append(rows, Row{ID: u.ID, Cells: []string{u.Username, u.FullName(), strings.Join(names, ", "), manager}})
	}
	return rows, nil
}

func (v *usersView) Form(ctx context.Context, _ *auth.User, id int64) ([]Field, error) {
	roles, err := v.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	opts := make([]Option, 0, len(roles))
	for _, r := range roles {
		opts = append(opts, Option{Value: idString(r.ID), Label: r.Name})
	}

	u := &auth.User{}
	if id != 0 {
		if u, err = v.store.GetByID(ctx, id); err != nil {
			return nil, err
		}
	}
	selected := make([]string, 0, len(u.Roles))
	for _, rid := range u.RoleIDs() {
		selected = append(selected, idString(rid))
	}

	pw := Field{Name: "password", Label: "Password", Type: FieldPassword, Required: id == 0}
	if id != 0 {
		pw.Help = "Leave blank to keep the current password."
	}
	return []Field{
		{Name: "username", Label: "Username", Type: FieldText, Value: u.Username, Required: true},
		{Name: "first_name", Label: "First name", Type: FieldText, Value: u.FirstName},
		{Name: "last_name", Label: "Last name", Type: FieldText, Value: u.LastName},
		pw,
		{Name: "roles", Label: "Roles", Type: FieldMulti, Values: selected, Options: opts},
	}, nil
}

func (v *usersView) Save(ctx context.Context, _ *auth.User, id int64, form url.Values) error {
	roleIDs, err := formInt64s(form, "roles")
	if err != nil {
		return err
	}
	_, err = v.store.SaveUser(ctx, id, auth.UserForm{
		Username:  form.Get("username"),
		Password:  form.Get("password"),
		FirstName: strings.TrimSpace(form.Get("first_name")),
		LastName:  strings.TrimSpace(form.Get("last_name")),
		RoleIDs:   roleIDs,
	})
	return err
}

func (v *usersView) Delete(ctx context.Context, id int64) error {
	return v.store.Delete(ctx, id)
}

type RoleStore interface {
	ListRoles(ctx context.Context) ([]auth.Role, error)
	GetRole(ctx context.Context, id int64) (*auth.Role, error)
	CreateRole(ctx context.Context, name, description string) (*auth.Role, error)
	UpdateRole(ctx context.Context, r auth.Role) error
	DeleteRole(ctx context.Context, id int64) error
}

type rolesView struct {
	store RoleStore
}

func NewRolesView(store RoleStore) View { return &rolesView{store: store} }

func (v *rolesView) Name() string      { return "roles" }
func (v *rolesView) Title() string     { return "Roles" }
func (v *rolesView) ManagerOnly() bool { return true }
func (v *rolesView) Columns() []string { return []string{"Name", "Description"} }

func (v *rolesView) List(ctx context.Context) ([]Row, error) {
	roles, err := v.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(roles))
	for _, r := range roles {
		rows = append(rows, Row{ID: r.ID, Cells: []string{r.Name, r.Description}})
	}
	return rows, nil
}

func (v *rolesView) Form(ctx context.Context, _ *auth.User, id int64) ([]Field, error) {
	r := &auth.Role{}
	if id != 0 {
		var err error
		if r, err = v.store.GetRole(ctx, id); err != nil {
			return nil, err
		}
	}
	return []Field{
		{Name: "name", Label: "Name", Type: FieldText, Value: r.Name, Required: true,
			Help: `Only the role named "` + auth.ManagerRole + `" grants extra permissions.`},
		{Name: "description", Label: "Description", Type: FieldTextarea, Value: r.Description},
	}, nil
}

func (v *rolesView) Save(ctx context.Context, _ *auth.User, id int64, form url.Values) error {
	name, desc := form.Get("name"), strings.TrimSpace(form.Get("description"))
	if id == 0 {
		_, err := v.store.CreateRole(ctx, name, desc)
		return err
	}
	return v.store.UpdateRole(ctx, auth.Role{ID: id, Name: name, Description: desc})
}

func (v *rolesView) Delete(ctx context.Context, id int64) error {
	return v.store.DeleteRole(ctx, id)
}
