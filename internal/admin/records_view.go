package admin

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"firmowy/internal/auth"
	"firmowy/internal/bills"
	"firmowy/internal/employees"
	"firmowy/internal/glossary"
	"firmowy/internal/timex"
)

type BillStore interface {
	List(ctx context.Context) ([]bills.Bill, error)
	Get(ctx context.Context, id int64) (*bills.Bill, error)
	Create(ctx context.Context, b bills.Bill) (*bills.Bill, error)
	Update(ctx context.Context, b bills.Bill) error
	Delete(ctx context.Context, id int64) error
}

type billsView struct{ store BillStore }

func NewBillsView(store BillStore) View { return &billsView{store: store} }

func (v *billsView) Name() string      { return "bills" }
func (v *billsView) Title() string     { return "Bills" }
func (v *billsView) ManagerOnly() bool { return false }
func (v *billsView) Columns() []string {
	return []string{"Date", "Category", "Amount", "Description"}
}

func (v *billsView) List(ctx context.Context) ([]Row, error) {
	list, err := v.store.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(list))
	for _, b := range list {
		desc := ""
		if b.Description != nil {
			desc = *b.Description
		}
		rows = append(rows, Row{ID: b.ID, Cells: []string{b.Date.String(), b.Category, formatAmount(b.Amount), desc}})
	}
	return rows, nil
}

func formatAmount(a float64) string {
	return strconv.FormatFloat(a, 'f', 2, 64)
}

func (v *billsView) Form(ctx context.Context, _ *auth.User, id int64) ([]Field, error) {
	b := &bills.Bill{}
	amount := ""
	if id != 0 {
		var err error
		if b, err = v.store.Get(ctx, id); err != nil {
			return nil, err
		}
		amount = formatAmount(b.Amount)
	}
	desc := ""
	if b.Description != nil {
		desc = *b.Description
	}
	return []Field{
		{Name: "category", Label: "Category", Type: FieldText, Value: b.Category, Required: true},
		{Name: "amount", Label: "Amount", Type: FieldNumber, Value: amount, Required: true},
		{Name: "date", Label: "Date", Type: FieldDate, Value: b.Date.String(), Required: true},
		{Name: "description", Label: "Description", Type: FieldTextarea, Value: desc},
	}, nil
}

func (v *billsView) Save(ctx context.Context, _ *auth.User, id int64, form url.Values) error {
	amount, err := formFloat(form, "amount")
	if err != nil {
		return err
	}
	date, err := timex.ParseDate(form.Get("date"))
	if err != nil {
		return err
	}
	b := bills.Bill{ID: id, Category: form.Get("category"), Amount: amount, Date: date}
	if desc := strings.TrimSpace(form.Get("description")); desc != "" {
		b.Description = &desc
	}
	if id == 0 {
		_, err = v.store.Create(ctx, b)
		return err
	}
	return v.store.Update(ctx, b)
}

func (v *billsView) Delete(ctx context.Context, id int64) error { return v.store.Delete(ctx, id) }

type EmployeeStore interface {
	List(ctx context.Context) ([]employees.Employee, error)
	Get(ctx context.Context, id int64) (*employees.Employee, error)
	Create(ctx context.Context, e employees.Employee) (*employees.Employee, error)
	Update(ctx context.Context, e employees.Employee) error
	Delete(ctx context.Context, id int64) error
}

type employeesView struct{ store EmployeeStore }

func NewEmployeesView(store EmployeeStore) View { return &employeesView{store: store} }

func (v *employeesView) Name() string      { return "employees" }
func (v *employeesView) Title() string     { return "Employees" }
func (v *employeesView) ManagerOnly() bool { return false }
func (v *employeesView) Columns() []string {
	return []string{"Last name", "First name", "Email"}
}

func (v *employeesView) List(ctx context.Context) ([]Row, error) {
	list, err := v.store.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(list))
	for _, e := range list {
		rows = append(rows, Row{ID: e.ID, Cells: []string{e.LastName, e.FirstName, e.Email}})
	}
	return rows, nil
}

func (v *employeesView) Form(ctx context.Context, _ *auth.User, id int64) ([]Field, error) {
	e := &employees.Employee{}
	if id != 0 {
		var err error
		if e, err = v.store.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	return []Field{
		{Name: "first_name", Label: "First name", Type: FieldText, Value: e.FirstName, Required: true},
		{Name: "last_name", Label: "Last name", Type: FieldText, Value: e.LastName, Required: true},
		{Name: "email", Label: "Email", Type: FieldEmail, Value: e.Email, Required: true},
	}, nil
}

func (v *employeesView) Save(ctx context.Context, _ *auth.User, id int64, form url.Values) error {
	e := employees.Employee{ID: id, FirstName: form.Get("first_name"), LastName: form.Get("last_name"), Email: form.Get("email")}
	if id == 0 {
		_, err := v.store.Create(ctx, e)
		return err
	}
	return v.store.Update(ctx, e)
}

func (v *employeesView) Delete(ctx context.Context, id int64) error { return v.store.Delete(ctx, id) }

type DefinitionStore interface {
	List(ctx context.Context) ([]glossary.Definition, error)
	Get(ctx context.Context, id int64) (*glossary.Definition, error)
	Create(ctx context.Context, d glossary.Definition) (*glossary.Definition, error)
	Update(ctx context.Context, d glossary.Definition) error
	Delete(ctx context.Context, id int64) error
}

type definitionsView struct{ store DefinitionStore }

func NewDefinitionsView(store DefinitionStore) View { return &definitionsView{store: store} }

func (v *definitionsView) Name() string      { return "definitions" }
func (v *definitionsView) Title() string     { return "Glossary" }
func (v *definitionsView) ManagerOnly() bool { return false }
func (v *definitionsView) Columns() []string { return []string{"Term", "Definition"} }

func (v *definitionsView) List(ctx context.Context) ([]Row, error) {
	list, err := v.store.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(list))
	for _, d := range list {
		rows = append(rows, Row{ID: d.ID, Cells: []string{d.Term, d.Definition}})
	}
	return rows, nil
}

func (v *definitionsView) Form(ctx context.Context, _ *auth.User, id int64) ([]Field, error) {
	d := &glossary.Definition{}
	if id != 0 {
		var err error
		if d, err = v.store.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	return []Field{
		{Name: "term", Label: "Term", Type: FieldText, Value: d.Term, Required: true},
		{Name: "definition", Label: "Definition", Type: FieldTextarea, Value: d.Definition, Required: true},
	}, nil
}

func (v *definitionsView) Save(ctx context.Context, _ *auth.User, id int64, form url.Values) error {
	d := glossary.Definition{ID: id, Term: form.Get("term"), Definition: form.Get("definition")}
	if id == 0 {
		_, err := v.store.Create(ctx, d)
		return err
	}
	return v.store.Update(ctx, d)
}

func (v *definitionsView) Delete(ctx context.Context, id int64) error { return v.store.Delete(ctx, id) }
