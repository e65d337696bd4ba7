package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"crewline/internal/config"
	"crewline/internal/domain"
	"crewline/internal/events"
	"crewline/internal/repo"
	"crewline/internal/schedule"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Log    *logrus.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Log:    logrus.StandardLogger(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) today() string {
	return e.now().UTC().Format(schedule.DateLayout)
}

// EmployeeCreateOptions are parameters for registering an employee.
type EmployeeCreateOptions struct {
	EmployeeID string
	FirstName  string
	LastName   string
	Department string
	WorkStatus string
	ActorID    string
}

func (e Engine) CreateEmployee(ctx context.Context, opts EmployeeCreateOptions) (domain.Employee, error) {
	if opts.EmployeeID == "" {
		return domain.Employee{}, errors.New("employee_id is required")
	}
	if opts.FirstName == "" || opts.LastName == "" {
		return domain.Employee{}, errors.New("first and last name are required")
	}
	if opts.WorkStatus == "" {
		opts.WorkStatus = domain.WorkStatusRegular
	}
	if !domain.ValidWorkStatus(opts.WorkStatus) {
		return domain.Employee{}, fmt.Errorf("invalid work status %q", opts.WorkStatus)
	}
	if _, err := e.Repo.GetEmployeeByBadge(ctx, opts.EmployeeID); err == nil {
		return domain.Employee{}, fmt.Errorf("employee %s already exists", opts.EmployeeID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Employee{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	emp := domain.Employee{
		ID:         uuid.NewString(),
		EmployeeID: opts.EmployeeID,
		FirstName:  opts.FirstName,
		LastName:   opts.LastName,
		Department: opts.Department,
		WorkStatus: opts.WorkStatus,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Employee{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEmployee(ctx, tx, emp); err != nil {
		return domain.Employee{}, fmt.Errorf("insert employee: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "employee.created", "employee", emp.ID, opts.ActorID, events.EventPayload{
		"employee_id": emp.EmployeeID,
		"work_status": emp.WorkStatus,
	}); err != nil {
		return domain.Employee{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Employee{}, err
	}
	return emp, nil
}

// EmployeeUpdateOptions carry partial updates; nil fields are unchanged.
type EmployeeUpdateOptions struct {
	FirstName  *string
	LastName   *string
	Department *string
	WorkStatus *string
	ActorID    string
}

func (e Engine) UpdateEmployee(ctx context.Context, id string, opts EmployeeUpdateOptions) (domain.Employee, error) {
	if opts.WorkStatus != nil && !domain.ValidWorkStatus(*opts.WorkStatus) {
		return domain.Employee{}, fmt.Errorf("invalid work status %q", *opts.WorkStatus)
	}
	now := e.now().UTC().Format(time.RFC3339)
	err := e.Repo.UpdateEmployee(ctx, id, now, repo.EmployeeUpdate{
		FirstName:  opts.FirstName,
		LastName:   opts.LastName,
		Department: opts.Department,
		WorkStatus: opts.WorkStatus,
	})
	if err != nil {
		return domain.Employee{}, err
	}
	emp, err := e.Repo.GetEmployee(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Employee{}, err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "employee.updated", "employee", id, opts.ActorID, events.EventPayload{
		"employee_id": emp.EmployeeID,
	}); err != nil {
		return domain.Employee{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Employee{}, err
	}
	return emp, nil
}

func (e Engine) DeleteEmployee(ctx context.Context, id, actorID string) error {
	emp, err := e.Repo.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteEmployee(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "employee.deleted", "employee", id, actorID, events.EventPayload{
		"employee_id": emp.EmployeeID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Directory returns the full employee list with attendance stamps for the
// inclusive date range. An empty range means today only.
func (e Engine) Directory(ctx context.Context, startDate, endDate string) ([]domain.Employee, error) {
	if startDate == "" {
		startDate = e.today()
	}
	if endDate == "" {
		endDate = startDate
	}
	if _, err := schedule.ParseDate(startDate); err != nil {
		return nil, err
	}
	if _, err := schedule.ParseDate(endDate); err != nil {
		return nil, err
	}
	if endDate < startDate {
		return nil, fmt.Errorf("end_date %s before start_date %s", endDate, startDate)
	}
	return e.Repo.ListEmployeesWithAttendance(ctx, startDate, endDate)
}

// LogAttendance records a scan for the badge: the first scan of a day sets
// time_in, later scans move time_out forward.
func (e Engine) LogAttendance(ctx context.Context, badge, day, clock, source, actorID string) (domain.DayTimes, error) {
	emp, err := e.Repo.GetEmployeeByBadge(ctx, badge)
	if err != nil {
		return domain.DayTimes{}, err
	}
	if day == "" {
		day = e.today()
	} else if _, err := schedule.ParseDate(day); err != nil {
		return domain.DayTimes{}, err
	}
	if clock == "" {
		clock = e.now().Format("15:04")
	}
	if source == "" {
		source = "manual"
	}

	dt, err := e.Repo.GetAttendance(ctx, emp.ID, day)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.DayTimes{}, err
	}
	if dt.TimeIn == nil {
		dt.TimeIn = &clock
	} else {
		dt.TimeOut = &clock
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DayTimes{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertAttendance(ctx, tx, uuid.NewString(), emp.ID, day, dt, source); err != nil {
		return domain.DayTimes{}, fmt.Errorf("upsert attendance: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "attendance.logged", "employee", emp.ID, actorID, events.EventPayload{
		"employee_id": emp.EmployeeID,
		"day":         day,
		"clock":       clock,
		"source":      source,
	}); err != nil {
		return domain.DayTimes{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DayTimes{}, err
	}
	return dt, nil
}
