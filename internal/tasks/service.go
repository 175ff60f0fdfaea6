package tasks

import (
	"context"

	"firmowy/internal/auth"
)

// Repository is the persistence the service needs; *Store implements it.
type Repository interface {
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	Create(ctx context.Context, t Task, assigneeIDs []int64) (*Task, error)
	Update(ctx context.Context, id int64, p Patch) (*Task, error)
	Delete(ctx context.Context, id int64) error
	ByAssignee(ctx context.Context) ([]Workload, error)
}

// Service applies validation and the assignment rule on top of a
// Repository. Every task write, from the API or the admin backend, goes
// through it.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Task, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*Task, error) {
	return s.repo.Get(ctx, id)
}

// CanAssign reports whether actor may set a non-empty assignee list.
func CanAssign(actor *auth.User) bool {
	return auth.IsManager(actor)
}

func (s *Service) Create(ctx context.Context, actor *auth.User, n NewTask) (*Task, error) {
	if len(n.AssigneeIDs) > 0 && !CanAssign(actor) {
		return nil, ErrForbidden
	}
	t, err := n.build()
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, t, n.AssigneeIDs)
}

// Update merges p into the stored task. Clearing the assignees is allowed
// for anyone; setting them requires a manager.
func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, p Patch) (*Task, error) {
	if p.ReassignsTo() && !CanAssign(actor) {
		return nil, ErrForbidden
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, p)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ByAssignee(ctx context.Context) ([]Workload, error) {
	return s.repo.ByAssignee(ctx)
}
