package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"crewline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func scanEmployee(row *sql.Row) (domain.Employee, error) {
	var e domain.Employee
	var dept sql.NullString
	err := row.Scan(&e.ID, &e.EmployeeID, &e.FirstName, &e.LastName, &dept, &e.WorkStatus, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if dept.Valid {
		e.Department = dept.String
	}
	return e, err
}

const employeeCols = `id,employee_id,first_name,last_name,department,work_status,created_at,updated_at`

func (r Repo) InsertEmployee(ctx context.Context, tx *sql.Tx, e domain.Employee) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO employees(`+employeeCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.EmployeeID, e.FirstName, e.LastName, nullable(e.Department), e.WorkStatus, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	return scanEmployee(r.DB.QueryRowContext(ctx, `SELECT `+employeeCols+` FROM employees WHERE id=?`, id))
}

func (r Repo) GetEmployeeByBadge(ctx context.Context, employeeID string) (domain.Employee, error) {
	return scanEmployee(r.DB.QueryRowContext(ctx, `SELECT `+employeeCols+` FROM employees WHERE employee_id=?`, employeeID))
}

func (r Repo) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+employeeCols+` FROM employees ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Employee
	for rows.Next() {
		var e domain.Employee
		var dept sql.NullString
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.FirstName, &e.LastName, &dept, &e.WorkStatus, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if dept.Valid {
			e.Department = dept.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EmployeeUpdate carries the mutable fields; nil means leave unchanged.
type EmployeeUpdate struct {
	FirstName  *string
	LastName   *string
	Department *string
	WorkStatus *string
}

func (r Repo) UpdateEmployee(ctx context.Context, id, updatedAt string, u EmployeeUpdate) error {
	var (
		fields []string
		args   []any
	)
	if u.FirstName != nil {
		fields = append(fields, "first_name=?")
		args = append(args, *u.FirstName)
	}
	if u.LastName != nil {
		fields = append(fields, "last_name=?")
		args = append(args, *u.LastName)
	}
	if u.Department != nil {
		fields = append(fields, "department=?")
		args = append(args, nullable(*u.Department))
	}
	if u.WorkStatus != nil {
		fields = append(fields, "work_status=?")
		args = append(args, *u.WorkStatus)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE employees SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteEmployee(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM employees WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEmployeesWithAttendance returns the directory with each employee's
// per-date attendance map for the inclusive date range. Dates with no record
// are absent from the map, which is distinct from a blank stamp.
func (r Repo) ListEmployeesWithAttendance(ctx context.Context, startDate, endDate string) ([]domain.Employee, error) {
	emps, err := r.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT employee_id, day, time_in, time_out FROM attendance WHERE day >= ? AND day <= ?`, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byEmp := map[string]map[string]domain.DayTimes{}
	for rows.Next() {
		var empID, day string
		var in, out sql.NullString
		if err := rows.Scan(&empID, &day, &in, &out); err != nil {
			return nil, err
		}
		if byEmp[empID] == nil {
			byEmp[empID] = map[string]domain.DayTimes{}
		}
		var dt domain.DayTimes
		if in.Valid {
			dt.TimeIn = &in.String
		}
		if out.Valid {
			dt.TimeOut = &out.String
		}
		byEmp[empID][day] = dt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range emps {
		emps[i].Attendances = byEmp[emps[i].ID]
	}
	return emps, nil
}

// GetAttendance returns the stamp pair for one employee and day.
func (r Repo) GetAttendance(ctx context.Context, employeeRowID, day string) (domain.DayTimes, error) {
	var in, out sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT time_in, time_out FROM attendance WHERE employee_id=? AND day=?`, employeeRowID, day).Scan(&in, &out)
	if err == sql.ErrNoRows {
		return domain.DayTimes{}, ErrNotFound
	}
	if err != nil {
		return domain.DayTimes{}, err
	}
	var dt domain.DayTimes
	if in.Valid {
		dt.TimeIn = &in.String
	}
	if out.Valid {
		dt.TimeOut = &out.String
	}
	return dt, nil
}

func (r Repo) UpsertAttendance(ctx context.Context, tx *sql.Tx, id, employeeRowID, day string, dt domain.DayTimes, source string) error {
	var in, out any
	if dt.TimeIn != nil {
		in = *dt.TimeIn
	}
	if dt.TimeOut != nil {
		out = *dt.TimeOut
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO attendance(id,employee_id,day,time_in,time_out,source) VALUES (?,?,?,?,?,?)
ON CONFLICT(employee_id,day) DO UPDATE SET time_in=excluded.time_in, time_out=excluded.time_out, source=excluded.source`,
		id, employeeRowID, day, in, out, source)
	return err
}

// LatestEvents returns the newest audit entries, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
