package tasks

import (
	"context"
	"sort"
	"sync"

	"firmowy/internal/auth"
)

// memRepo mirrors Store semantics in memory.
type memRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]Task
	users  map[int64]Assignee
	writes int
}

func newMemRepo(users ...*auth.User) *memRepo {
	m := &memRepo{tasks: map[int64]Task{}, users: map[int64]Assignee{}}
	for _, u := range users {
		m.users[u.ID] = Assignee{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	}
	return m
}

func (m *memRepo) resolve(ids []int64) []Assignee {
	seen := map[int64]bool{}
	out := []Assignee{}
	for _, id := range ids {
		if a, ok := m.users[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (m *memRepo) List(context.Context) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Task{}
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memRepo) Create(_ context.Context, t Task, ids []int64) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.writes++
	t.ID = m.nextID
	t.AssignedTo = m.resolve(ids)
	m.tasks[t.ID] = t
	return &t, nil
}

func (m *memRepo) Update(_ context.Context, id int64, p Patch) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := p.Apply(&t); err != nil {
		return nil, err
	}
	if p.AssigneeIDs != nil {
		t.AssignedTo = m.resolve(*p.AssigneeIDs)
	}
	m.writes++
	m.tasks[id] = t
	return &t, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memRepo) ByAssignee(context.Context) ([]Workload, error) {
	return nil, nil
}

var (
	admin = &auth.User{ID: 1, Username: "admin", FirstName: "Admin", LastName: "System", Roles: []auth.Role{{ID: 1, Name: auth.ManagerRole}}}
	adam  = &auth.User{ID: 2, Username: "adam", FirstName: "Adam", LastName: "Worker"}
)

func strp(s string) *string { return &s }
