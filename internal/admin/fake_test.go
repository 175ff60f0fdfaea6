package admin

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"firmowy/internal/auth"
	"firmowy/internal/tasks"
)

var (
	managerRole = auth.Role{ID: 1, Name: auth.ManagerRole}
	workerRole  = auth.Role{ID: 2, Name: "Worker"}
)

// directory is an in-memory user store shared by the auth service and the
// users view.
type directory struct {
	mu        sync.Mutex
	users     map[int64]*auth.User
	next      int64
	failRoles error
}

func newDirectory(t *testing.T) *directory {
	t.Helper()
	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}
	return &directory{
		next: 3,
		users: map[int64]*auth.User{
			1: {ID: 1, Username: "admin", FirstName: "Szef", LastName: "Systemu", PasswordHash: hash("adminpassword"), Roles: []auth.Role{managerRole}},
			2: {ID: 2, Username: "adam", FirstName: "Adam", LastName: "Kowalski", PasswordHash: hash("password"), Roles: []auth.Role{workerRole}},
		},
	}
}

func (d *directory) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (d *directory) List(_ context.Context) ([]auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]auth.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *directory) GetByID(_ context.Context, id int64) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// SaveUser mirrors auth.Store.SaveUser: the whole save is applied or none of
// it is. failRoles makes role assignment fail after the user row is written.
func (d *directory) SaveUser(_ context.Context, id int64, f auth.UserForm) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f.Username == "" || (id == 0 && f.Password == "") {
		return nil, auth.ErrMissingField
	}
	for _, u := range d.users {
		if u.Username == f.Username && u.ID != id {
			return nil, auth.ErrUsernameTaken
		}
	}
	var u auth.User
	if id != 0 {
		cur, ok := d.users[id]
		if !ok {
			return nil, auth.ErrUserNotFound
		}
		u = *cur
	} else {
		u.ID = d.next
	}
	u.Username, u.FirstName, u.LastName = f.Username, f.FirstName, f.LastName
	if d.failRoles != nil {
		return nil, d.failRoles
	}
	u.Roles = nil
	for _, rid := range f.RoleIDs {
		switch rid {
		case managerRole.ID:
			u.Roles = append(u.Roles, managerRole)
		case workerRole.ID:
			u.Roles = append(u.Roles, workerRole)
		}
	}
	if !auth.IsManager(&u) && d.managersExcept(u.ID) == 0 {
		return nil, auth.ErrLastManager
	}
	d.users[u.ID] = &u
	if id == 0 {
		d.next++
	}
	cp := u
	return &cp, nil
}

func (d *directory) managersExcept(id int64) int {
	n := 0
	for _, u := range d.users {
		if u.ID != id && auth.IsManager(u) {
			n++
		}
	}
	return n
}

func (d *directory) Delete(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	if auth.IsManager(u) && d.managersExcept(id) == 0 {
		return auth.ErrLastManager
	}
	delete(d.users, id)
	return nil
}

func (d *directory) ListRoles(context.Context) ([]auth.Role, error) {
	return []auth.Role{managerRole, workerRole}, nil
}

// taskRepo is a minimal tasks.Repository keyed by id.
type taskRepo struct {
	dir   *directory
	tasks map[int64]*tasks.Task
	next  int64
}

func newTaskRepo(dir *directory) *taskRepo {
	return &taskRepo{dir: dir, tasks: map[int64]*tasks.Task{}, next: 1}
}

func (r *taskRepo) assignees(ids []int64) []tasks.Assignee {
	out := []tasks.Assignee{}
	for _, id := range ids {
		if u, ok := r.dir.users[id]; ok {
			out = append(out, tasks.Assignee{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName})
		}
	}
	return out
}

func (r *taskRepo) List(context.Context) ([]tasks.Task, error) {
	out := make([]tasks.Task, 0, len(r.tasks))
	for id := int64(1); id < r.next; id++ {
		if t, ok := r.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *taskRepo) Get(_ context.Context, id int64) (*tasks.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *taskRepo) Create(_ context.Context, t tasks.Task, assigneeIDs []int64) (*tasks.Task, error) {
	t.ID = r.next
	r.next++
	t.AssignedTo = r.assignees(assigneeIDs)
	r.tasks[t.ID] = &t
	cp := t
	return &cp, nil
}

func (r *taskRepo) Update(_ context.Context, id int64, p tasks.Patch) (*tasks.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, tasks.ErrNotFound
	}
	if err := p.Apply(t); err != nil {
		return nil, err
	}
	if p.AssigneeIDs != nil {
		t.AssignedTo = r.assignees(*p.AssigneeIDs)
	}
	cp := *t
	return &cp, nil
}

func (r *taskRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.tasks[id]; !ok {
		return tasks.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *taskRepo) ByAssignee(ctx context.Context) ([]tasks.Workload, error) {
	users, _ := r.dir.List(ctx)
	out := make([]tasks.Workload, 0, len(users))
	for _, u := range users {
		w := tasks.Workload{User: tasks.Assignee{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}}
		for id := int64(1); id < r.next; id++ {
			t, ok := r.tasks[id]
			if !ok {
				continue
			}
			for _, a := range t.AssignedTo {
				if a.ID == u.ID {
					w.Tasks = append(w.Tasks, *t)
				}
			}
		}
		out = append(out, w)
	}
	return out, nil
}
