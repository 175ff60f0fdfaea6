package admin

import (
	"context"
	"net/url"
	"strings"

	"firmowy/internal/auth"
	"firmowy/internal/tasks"
)

// TaskService is implemented by *tasks.Service, so admin edits obey the
// same assignment rule as the API.
type TaskService interface {
	List(ctx context.Context) ([]tasks.Task, error)
	Get(ctx context.Context, id int64) (*tasks.Task, error)
	Create(ctx context.Context, actor *auth.User, n tasks.NewTask) (*tasks.Task, error)
	Update(ctx context.Context, actor *auth.User, id int64, p tasks.Patch) (*tasks.Task, error)
	Delete(ctx context.Context, id int64) error
}

type UserLister interface {
	List(ctx context.Context) ([]auth.User, error)
}

type tasksView struct {
	tasks TaskService
	users UserLister
}

func NewTasksView(svc TaskService, users UserLister) View {
	return &tasksView{tasks: svc, users: users}
}

func (v *tasksView) Name() string      { return "tasks" }
func (v *tasksView) Title() string     { return "Tasks" }
func (v *tasksView) ManagerOnly() bool { return false }
func (v *tasksView) Columns() []string {
	return []string{"Title", "Status", "Due date", "Assigned to"}
}

func (v *tasksView) List(ctx context.Context) ([]Row, error) {
	list, err := v.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(list))
	for _, t := range list {
		names := make([]string, 0, len(t.AssignedTo))
		for _, a := range t.AssignedTo {
			names = append(names, a.Username)
		}
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.String()
		}
		rows = append(rows, Row{ID: t.ID, Cells: []string{t.Title, t.Status.Label(), due, strings.Join(names, ", ")}})
	}
	return rows, nil
}

func (v *tasksView) Form(ctx context.Context, actor *auth.User, id int64) ([]Field, error) {
	t := &tasks.Task{Status: tasks.StatusNotStarted}
	if id != 0 {
		var err error
		if t, err = v.tasks.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	users, err := v.users.List(ctx)
	if err != nil {
		return nil, err
	}

	statusOpts := make([]Option, 0, len(tasks.Statuses))
	for _, s := range tasks.Statuses {
		statusOpts = append(statusOpts, Option{Value: string(s), Label: s.Label()})
	}
	userOpts := make([]Option, 0, len(users))
	for i := range users {
		label := users[i].Username
		if full := users[i].FullName(); full != "" {
			label += " (" + full + ")"
		}
		userOpts = append(userOpts, Option{Value: idString(users[i].ID), Label: label})
	}
	assigned := make([]string, 0, len(t.AssignedTo))
	for _, a := range t.AssignedTo {
		assigned = append(assigned, idString(a.ID))
	}
	due := ""
	if t.DueDate != nil {
		due = t.DueDate.String()
	}

	assignees := Field{Name: "assigned_to", Label: "Assigned to", Type: FieldMulti, Values: assigned, Options: userOpts}
	if !tasks.CanAssign(actor) {
		assignees.Disabled = true
		assignees.Help = "Only managers can assign tasks."
	}
	return []Field{
		{Name: "title", Label: "Title", Type: FieldText, Value: t.Title, Required: true},
		{Name: "description", Label: "Description", Type: FieldTextarea, Value: t.Description, Required: true},
		{Name: "due_date", Label: "Due date", Type: FieldDate, Value: due},
		{Name: "status", Label: "Status", Type: FieldSelect, Value: string(t.Status), Options: statusOpts},
		assignees,
	}, nil
}

// assigneesFrom returns the submitted assignee ids, or nil when the form
// leaves assignments alone. Managers always submit the full set; for anyone
// else the field is disabled and only a hand-crafted request carries it.
func assigneesFrom(actor *auth.User, form url.Values) (*[]int64, error) {
	_, present := form["assigned_to"]
	if !present && !tasks.CanAssign(actor) {
		return nil, nil
	}
	ids, err := formInt64s(form, "assigned_to")
	if err != nil {
		return nil, err
	}
	return &ids, nil
}

func (v *tasksView) Save(ctx context.Context, actor *auth.User, id int64, form url.Values) error {
	assignees, err := assigneesFrom(actor, form)
	if err != nil {
		return err
	}
	title, desc := form.Get("title"), form.Get("description")
	due, status := form.Get("due_date"), tasks.Status(form.Get("status"))

	if id == 0 {
		n := tasks.NewTask{Title: title, Description: desc, DueDate: &due, Status: status}
		if assignees != nil {
			n.AssigneeIDs = *assignees
		}
		_, err := v.tasks.Create(ctx, actor, n)
		return err
	}
	_, err = v.tasks.Update(ctx, actor, id, tasks.Patch{
		Title:       &title,
		Description: &desc,
		DueDate:     &due,
		Status:      &status,
		AssigneeIDs: assignees,
	})
	return err
}

func (v *tasksView) Delete(ctx context.Context, id int64) error {
	return v.tasks.Delete(ctx, id)
}
