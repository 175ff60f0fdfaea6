package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"firmowy/internal/db"
	"firmowy/internal/timex"
)

type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

const taskColumns = `id, title, description, due_date, status`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Status)
	return t, err
}

// List returns all tasks ordered by id, each with its assignees.
func (s *Store) List(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachAssignees(ctx, s.db, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*Task, error) {
	return get(ctx, s.db, id, false)
}

func get(ctx context.Context, q db.DBTX, id int64, lock bool) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	t, err := scanTask(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	list := []Task{t}
	if err := attachAssignees(ctx, q, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func attachAssignees(ctx context.Context, q db.DBTX, list []Task) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, t := range list {
		ids[i] = t.ID
		index[t.ID] = i
		list[i].AssignedTo = []Assignee{}
	}

	const query = `
		SELECT ta.task_id, u.id, u.username, u.first_name, u.last_name
		FROM task_assignments ta
		JOIN users u ON u.id = ta.user_id
		WHERE ta.task_id = ANY($1)
		ORDER BY u.username
	`
	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID int64
		var a Assignee
		if err := rows.Scan(&taskID, &a.ID, &a.Username, &a.FirstName, &a.LastName); err != nil {
			return err
		}
		if i, ok := index[taskID]; ok {
			list[i].AssignedTo = append(list[i].AssignedTo, a)
		}
	}
	return rows.Err()
}

// Create inserts the task and its assignments in one transaction. Ids that do
// not match a user are dropped.
func (s *Store) Create(ctx context.Context, t Task, assigneeIDs []int64) (*Task, error) {
	const insert = `
		INSERT INTO tasks (title, description, due_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var out *Task
	err := db.WithTx(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		var id int64
		if err := tx.QueryRowContext(ctx, insert, t.Title, t.Description, t.DueDate, t.Status).Scan(&id); err != nil {
			return err
		}
		if err := assign(ctx, tx, id, assigneeIDs); err != nil {
			return err
		}
		var err error
		out, err = get(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return out, nil
}

// Update locks the row, merges the patch and rewrites it. A non-nil
// assignee list replaces the current assignments.
func (s *Store) Update(ctx context.Context, id int64, p Patch) (*Task, error) {
	const update = `
		UPDATE tasks SET title = $2, description = $3, due_date = $4, status = $5
		WHERE id = $1
	`
	var out *Task
	err := db.WithTx(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		t, err := get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := p.Apply(t); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, update, t.ID, t.Title, t.Description, t.DueDate, t.Status); err != nil {
			return err
		}
		if p.AssigneeIDs != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignments WHERE task_id = $1`, id); err != nil {
				return err
			}
			if err := assign(ctx, tx, id, *p.AssigneeIDs); err != nil {
				return err
			}
		}
		out, err = get(ctx, tx, id, false)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return out, nil
}

func assign(ctx context.Context, tx db.DBTX, taskID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	const q = `
		INSERT INTO task_assignments (user_id, task_id)
		SELECT id, $1 FROM users WHERE id = ANY($2)
		ON CONFLICT DO NOTHING
	`
	_, err := tx.ExecContext(ctx, q, taskID, pq.Array(userIDs))
	return err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ByAssignee returns every user, ordered by username, with the tasks
// assigned to them.
func (s *Store) ByAssignee(ctx context.Context) ([]Workload, error) {
	const q = `
		SELECT u.id, u.username, u.first_name, u.last_name,
		       t.id, t.title, t.description, t.due_date, t.status
		FROM users u
		LEFT JOIN task_assignments ta ON ta.user_id = u.id
		LEFT JOIN tasks t ON t.id = ta.task_id
		ORDER BY u.username, t.id
	`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Workload
	for rows.Next() {
		var (
			a      Assignee
			taskID sql.NullInt64
			title  sql.NullString
			desc   sql.NullString
			due    *timex.Date
			status sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Username, &a.FirstName, &a.LastName, &taskID, &title, &desc, &due, &status); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].User.ID != a.ID {
			out = append(out, Workload{User: a})
		}
		if taskID.Valid {
			w := &out[len(out)-1]
			w.Tasks = append(w.Tasks, Task{
				ID:          taskID.Int64,
				Title:       title.String,
				Description: desc.String,
				DueDate:     due,
				Status:      Status(status.String),
			})
		}
	}
	return out, rows.Err()
}
