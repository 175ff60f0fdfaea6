package tasks

import (
	"errors"
	"fmt"
	"strings"

	"firmowy/internal/timex"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProcess  Status = "in_process"
	StatusDone       Status = "done"
)

// Statuses lists the board columns in display order.
var Statuses = []Status{StatusNotStarted, StatusInProcess, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProcess, StatusDone:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not started"
	case StatusInProcess:
		return "In process"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

var (
	ErrNotFound   = errors.New("task not found")
	ErrForbidden  = errors.New("only managers can assign tasks")
	ErrValidation = errors.New("invalid task")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type Assignee struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Task struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueDate     *timex.Date `json:"due_date"`
	Status      Status      `json:"status"`
	AssignedTo  []Assignee  `json:"assigned_to"`
}

func (t *Task) AssigneeIDs() []int64 {
	ids := make([]int64, 0, len(t.AssignedTo))
	for _, a := range t.AssignedTo {
		ids = append(ids, a.ID)
	}
	return ids
}

// NewTask is the create payload. An empty status means not_started.
type NewTask struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     *string `json:"due_date"`
	Status      Status  `json:"status"`
	AssigneeIDs []int64 `json:"assigned_to_ids"`
}

func (n NewTask) build() (Task, error) {
	t := Task{
		Title:       strings.TrimSpace(n.Title),
		Description: strings.TrimSpace(n.Description),
		Status:      n.Status,
	}
	if t.Title == "" {
		return Task{}, invalid("title is required")
	}
	if t.Description == "" {
		return Task{}, invalid("description is required")
	}
	if t.Status == "" {
		t.Status = StatusNotStarted
	}
	if !t.Status.Valid() {
		return Task{}, invalid("unknown status %q", t.Status)
	}
	due, err := parseDue(n.DueDate)
	if err != nil {
		return Task{}, err
	}
	t.DueDate = due
	return t, nil
}

// Patch is a merge patch: nil fields keep the stored value. A due date of ""
// clears it. A non-nil AssigneeIDs replaces the assignee set, an empty list
// clears it.
type Patch struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	DueDate     *string  `json:"due_date"`
	Status      *Status  `json:"status"`
	AssigneeIDs *[]int64 `json:"assigned_to_ids"`
}

// ReassignsTo reports whether the patch sets a non-empty assignee list.
func (p Patch) ReassignsTo() bool {
	return p.AssigneeIDs != nil && len(*p.AssigneeIDs) > 0
}

func (p Patch) Validate() error {
	var t Task
	return p.applyTo(&t, true)
}

// Apply merges the patch into t.
func (p Patch) Apply(t *Task) error {
	return p.applyTo(t, false)
}

func (p Patch) applyTo(t *Task, dry bool) error {
	next := *t
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
		if next.Title == "" {
			return invalid("title cannot be blank")
		}
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
		if next.Description == "" {
			return invalid("description cannot be blank")
		}
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return invalid("unknown status %q", *p.Status)
		}
		next.Status = *p.Status
	}
	if p.DueDate != nil {
		due, err := parseDue(p.DueDate)
		if err != nil {
			return err
		}
		next.DueDate = due
	}
	if !dry {
		*t = next
	}
	return nil
}

func parseDue(s *string) (*timex.Date, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	d, err := timex.ParseDate(*s)
	if err != nil {
		return nil, invalid("due_date: %v", err)
	}
	return &d, nil
}

// Workload is one user with the tasks assigned to them.
type Workload struct {
	User  Assignee `json:"user"`
	Tasks []Task   `json:"tasks"`
}
