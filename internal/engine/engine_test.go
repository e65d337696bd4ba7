package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"crewline/internal/config"
	"crewline/internal/db"
	"crewline/internal/domain"
	"crewline/internal/engine"
	"crewline/internal/migrate"
	"crewline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	// Wednesday 2025-11-12
	eng.Now = func() time.Time { return time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC) }
	eng.Events.Now = eng.Now
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func seedEmployee(t *testing.T, env testEnv, badge, first, last, status string) domain.Employee {
	t.Helper()
	emp, err := env.Engine.CreateEmployee(env.Ctx, engine.EmployeeCreateOptions{
		EmployeeID: badge,
		FirstName:  first,
		LastName:   last,
		WorkStatus: status,
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create employee %s: %v", badge, err)
	}
	return emp
}

func TestCreateEmployeeValidation(t *testing.T) {
	env := newTestEnv(t)
	seedEmployee(t, env, "EMP-001", "Juan", "Dela Cruz", "")

	if _, err := env.Engine.CreateEmployee(env.Ctx, engine.EmployeeCreateOptions{
		EmployeeID: "EMP-001", FirstName: "Other", LastName: "Person", ActorID: "tester",
	}); err == nil {
		t.Fatal("expected duplicate badge error")
	}
	if _, err := env.Engine.CreateEmployee(env.Ctx, engine.EmployeeCreateOptions{
		EmployeeID: "EMP-002", FirstName: "No", LastName: "Status", WorkStatus: "CONTRACTOR", ActorID: "tester",
	}); err == nil {
		t.Fatal("expected invalid work status error")
	}
	if _, err := env.Engine.CreateEmployee(env.Ctx, engine.EmployeeCreateOptions{
		EmployeeID: "EMP-003", FirstName: "", LastName: "Nameless", ActorID: "tester",
	}); err == nil {
		t.Fatal("expected missing name error")
	}
}

func TestUpdateAndDeleteEmployee(t *testing.T) {
	env := newTestEnv(t)
	emp := seedEmployee(t, env, "EMP-001", "Juan", "Dela Cruz", "")

	status := domain.WorkStatusAddCrew
	updated, err := env.Engine.UpdateEmployee(env.Ctx, emp.ID, engine.EmployeeUpdateOptions{
		WorkStatus: &status, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsAddCrew() {
		t.Fatalf("work status not applied: %+v", updated)
	}

	if err := env.Engine.DeleteEmployee(env.Ctx, emp.ID, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetEmployee(env.Ctx, emp.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttendanceScansSetInThenOut(t *testing.T) {
	env := newTestEnv(t)
	seedEmployee(t, env, "EMP-001", "Juan", "Dela Cruz", "")

	dt, err := env.Engine.LogAttendance(env.Ctx, "EMP-001", "2025-11-12", "07:58", "scanner", "tester")
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if dt.TimeIn == nil || *dt.TimeIn != "07:58" || dt.TimeOut != nil {
		t.Fatalf("first scan should set time in only: %+v", dt)
	}

	dt, err = env.Engine.LogAttendance(env.Ctx, "EMP-001", "2025-11-12", "12:01", "scanner", "tester")
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if dt.TimeOut == nil || *dt.TimeOut != "12:01" {
		t.Fatalf("second scan should set time out: %+v", dt)
	}

	dt, err = env.Engine.LogAttendance(env.Ctx, "EMP-001", "2025-11-12", "17:02", "scanner", "tester")
	if err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if *dt.TimeIn != "07:58" || *dt.TimeOut != "17:02" {
		t.Fatalf("later scans must move time out forward: %+v", dt)
	}

	if _, err := env.Engine.LogAttendance(env.Ctx, "NO-SUCH", "2025-11-12", "08:00", "scanner", "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown badge, got %v", err)
	}
}

func TestDirectoryCarriesAttendanceForRange(t *testing.T) {
	env := newTestEnv(t)
	seedEmployee(t, env, "EMP-001", "Juan", "Dela Cruz", "")
	if _, err := env.Engine.LogAttendance(env.Ctx, "EMP-001", "2025-11-10", "07:58", "scanner", "tester"); err != nil {
		t.Fatal(err)
	}

	emps, err := env.Engine.Directory(env.Ctx, "2025-11-10", "2025-11-16")
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	if len(emps) != 1 {
		t.Fatalf("expected 1 employee, got %d", len(emps))
	}
	dt, ok := emps[0].Attendances["2025-11-10"]
	if !ok || dt.TimeIn == nil || *dt.TimeIn != "07:58" {
		t.Fatalf("attendance missing from directory: %+v", emps[0].Attendances)
	}
	if _, ok := emps[0].Attendances["2025-11-11"]; ok {
		t.Fatal("absent day must not have a map entry")
	}

	if _, err := env.Engine.Directory(env.Ctx, "2025-11-16", "2025-11-10"); err == nil {
		t.Fatal("expected inverted range error")
	}
}

func TestSettingsDefaultAndUpdate(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.Engine.GetSettings(env.Ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if !s.SevenDays || s.FourteenDays || s.LockPeriodDays != 7 {
		t.Fatalf("expected config default 7-day window, got %+v", s)
	}

	s, err = env.Engine.UpdateSettings(env.Ctx, false, true, "tester")
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if s.SevenDays || !s.FourteenDays || s.LockPeriodDays != 14 {
		t.Fatalf("expected 14-day window, got %+v", s)
	}
	// switching one flag on turns the other off, never both
	if _, err := env.Engine.UpdateSettings(env.Ctx, true, true, "tester"); err == nil {
		t.Fatal("expected mutual exclusion error")
	}
	s, _ = env.Engine.GetSettings(env.Ctx)
	if s.LockPeriodDays != 14 {
		t.Fatalf("rejected update must not change stored window: %+v", s)
	}

	if s, err = env.Engine.UpdateSettings(env.Ctx, false, false, "tester"); err != nil || s.LockPeriodDays != 0 {
		t.Fatalf("disabling lock: %+v %v", s, err)
	}
}

func record(name, position string, slot int, microteam string) domain.AssignmentRecord {
	return domain.AssignmentRecord{
		EmployeeName: name,
		Position:     position,
		SlotIndex:    slot,
		Microteam:    microteam,
	}
}

func TestSaveSheetRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	in := "07:58"
	rec := record("Juan Dela Cruz", "PACKER", 0, "MICROTEAM - 01")
	rec.TimeData[0] = domain.StoredCell{TimeIn: &in}
	err := env.Engine.SaveSheet(env.Ctx, engine.SaveSheetOptions{
		Microteam:     "MICROTEAM - 01",
		WeekStartDate: "2025-11-10",
		DayOfSave:     "2025-11-12",
		Assignments:   []domain.AssignmentRecord{rec},
		PreparedBy:    "supervisor",
		LeaveRows:     map[string]string{"SICK LEAVE": "Maria Santos"},
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("save sheet: %v", err)
	}

	st, err := env.Engine.SheetFor(env.Ctx, "MICROTEAM - 01", "2025-11-13")
	if err != nil {
		t.Fatalf("sheet for date in week: %v", err)
	}
	names := st.AssignmentData["PACKER"]
	if len(names) != 8 || names[0] != "Juan Dela Cruz" {
		t.Fatalf("assignment data shape: %v", names)
	}
	cell := st.TimeData["PACKER"]["0"]["0"]
	if cell.TimeIn == nil || *cell.TimeIn != "07:58" {
		t.Fatalf("time data lost: %+v", cell)
	}
	if st.PreparedBy != "supervisor" || st.LeaveRows["SICK LEAVE"] != "Maria Santos" {
		t.Fatalf("signatures/leave rows lost: %+v", st)
	}

	if _, err := env.Engine.SheetFor(env.Ctx, "MICROTEAM - 02", "2025-11-13"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unsaved team, got %v", err)
	}
}

func TestSaveSheetValidation(t *testing.T) {
	env := newTestEnv(t)
	rec := record("Juan Dela Cruz", "PACKER", 0, "MICROTEAM - 01")

	cases := map[string]engine.SaveSheetOptions{
		"unknown team": {
			Microteam: "MICROTEAM - 99", WeekStartDate: "2025-11-10",
			Assignments: []domain.AssignmentRecord{rec},
		},
		"not a monday": {
			Microteam: "MICROTEAM - 01", WeekStartDate: "2025-11-11",
			Assignments: []domain.AssignmentRecord{rec},
		},
		"no assignments": {
			Microteam: "MICROTEAM - 01", WeekStartDate: "2025-11-10",
		},
		"unknown position": {
			Microteam: "MICROTEAM - 01", WeekStartDate: "2025-11-10",
			Assignments: []domain.AssignmentRecord{record("X", "GHOST", 0, "MICROTEAM - 01")},
		},
	}
	for name, opts := range cases {
		opts.ActorID = "tester"
		if err := env.Engine.SaveSheet(env.Ctx, opts); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSaveSheetCrossTeamConflict(t *testing.T) {
	env := newTestEnv(t)

	save := func(team string, names ...string) error {
		recs := make([]domain.AssignmentRecord, len(names))
		for i, n := range names {
			recs[i] = record(n, "PACKER", i, team)
		}
		return env.Engine.SaveSheet(env.Ctx, engine.SaveSheetOptions{
			Microteam:     team,
			WeekStartDate: "2025-11-10",
			DayOfSave:     "2025-11-12",
			Assignments:   recs,
			ActorID:       "tester",
		})
	}

	if err := save("MICROTEAM - 01", "Juan Dela Cruz", "Maria Santos"); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := save("MICROTEAM - 02", "Juan Dela Cruz", "Pedro Reyes")
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(ce.Names) != 1 || ce.Names[0] != "Juan Dela Cruz" || ce.Day != "2025-11-12" {
		t.Fatalf("conflict detail: %+v", ce)
	}

	// the claiming team can re-save its own roster
	if err := save("MICROTEAM - 01", "Juan Dela Cruz"); err != nil {
		t.Fatalf("own re-save: %v", err)
	}
	// which releases Maria Santos for other teams
	if err := save("MICROTEAM - 02", "Maria Santos"); err != nil {
		t.Fatalf("released employee: %v", err)
	}
}

func TestDayAndWeekMembership(t *testing.T) {
	env := newTestEnv(t)

	recs := []domain.AssignmentRecord{
		record("Juan Dela Cruz", "PACKER", 0, "MICROTEAM - 01"),
		{EmployeeName: "Pedro Reyes", Position: "SUPPORT / ABSENT", SlotIndex: 0, Microteam: "MICROTEAM - 01", IsAddCrew: true},
	}
	if err := env.Engine.SaveSheet(env.Ctx, engine.SaveSheetOptions{
		Microteam: "MICROTEAM - 01", WeekStartDate: "2025-11-10", DayOfSave: "2025-11-12",
		Assignments: recs, ActorID: "tester",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	m, err := env.Engine.DayMembership(env.Ctx, "2025-11-12")
	if err != nil {
		t.Fatalf("day membership: %v", err)
	}
	if len(m.Microteams["MICROTEAM - 01"]) != 1 || m.Microteams["MICROTEAM - 01"][0] != "Juan Dela Cruz" {
		t.Fatalf("regular membership: %+v", m.Microteams)
	}
	if len(m.AddCrew["MICROTEAM - 01"]) != 1 || m.AddCrew["MICROTEAM - 01"][0] != "Pedro Reyes" {
		t.Fatalf("add-crew membership: %+v", m.AddCrew)
	}

	weekStart, days, err := env.Engine.WeekMembership(env.Ctx, "2025-11-14")
	if err != nil {
		t.Fatalf("week membership: %v", err)
	}
	if weekStart != "2025-11-10" || len(days) != 7 {
		t.Fatalf("week shape: %s %d", weekStart, len(days))
	}
	if len(days["2025-11-12"].Microteams["MICROTEAM - 01"]) != 1 {
		t.Fatalf("save day missing from week: %+v", days["2025-11-12"])
	}
	if len(days["2025-11-10"].Microteams) != 0 {
		t.Fatalf("unclaimed day must be empty: %+v", days["2025-11-10"])
	}
}

func TestLockedEmployeesCountdown(t *testing.T) {
	env := newTestEnv(t)

	// assigned Monday, evaluated Wednesday under a 7-day window
	if err := env.Engine.SaveSheet(env.Ctx, engine.SaveSheetOptions{
		Microteam: "MICROTEAM - 01", WeekStartDate: "2025-11-10", DayOfSave: "2025-11-10",
		Assignments: []domain.AssignmentRecord{record("Juan Dela Cruz", "PACKER", 0, "MICROTEAM - 01")},
		ActorID:     "tester",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	records, err := env.Engine.LockedEmployees(env.Ctx, domain.LockSevenDays)
	if err != nil {
		t.Fatalf("locked employees: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 lock record, got %d", len(records))
	}
	lr := records[0]
	if lr.EmployeeName != "Juan Dela Cruz" || lr.AssignmentDate != "2025-11-10" {
		t.Fatalf("lock identity: %+v", lr)
	}
	if lr.LockUntil != "2025-11-17" || lr.DaysRemaining != 5 {
		t.Fatalf("lock arithmetic: %+v", lr)
	}

	records, err = env.Engine.LockedEmployees(env.Ctx, domain.LockNone)
	if err != nil || len(records) != 0 {
		t.Fatalf("disabled window must yield no locks: %v %v", records, err)
	}
}

func TestEventsAppended(t *testing.T) {
	env := newTestEnv(t)
	seedEmployee(t, env, "EMP-001", "Juan", "Dela Cruz", "")
	if _, err := env.Engine.UpdateSettings(env.Ctx, true, false, "tester"); err != nil {
		t.Fatal(err)
	}

	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "", "")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// newest first
	if events[0].Type != "settings.updated" || events[1].Type != "employee.created" {
		t.Fatalf("event order: %s, %s", events[0].Type, events[1].Type)
	}
	if events[0].ActorID != "tester" {
		t.Fatalf("actor lost: %+v", events[0])
	}
}

func TestEmployeeClaimsWindow(t *testing.T) {
	env := newTestEnv(t)

	save := func(team, day string) error {
		return env.Engine.SaveSheet(env.Ctx, engine.SaveSheetOptions{
			Microteam:     team,
			WeekStartDate: "2025-11-10",
			DayOfSave:     day,
			Assignments:   []domain.AssignmentRecord{record("Juan Dela Cruz", "PACKER", 0, team)},
			ActorID:       "tester",
		})
	}
	if err := save("MICROTEAM - 01", "2025-11-10"); err != nil {
		t.Fatal(err)
	}
	if err := save("MICROTEAM - 01", "2025-11-12"); err != nil {
		t.Fatal(err)
	}

	claims, err := env.Engine.Repo.EmployeeClaims(env.Ctx, "Juan Dela Cruz", "2025-11-10", "2025-11-16")
	if err != nil {
		t.Fatalf("claims: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}
	// newest day first
	if claims[0].Day != "2025-11-12" || claims[1].Day != "2025-11-10" {
		t.Fatalf("claim order: %s, %s", claims[0].Day, claims[1].Day)
	}
	if claims[0].Microteam != "MICROTEAM - 01" {
		t.Fatalf("claim team: %s", claims[0].Microteam)
	}

	claims, err = env.Engine.Repo.EmployeeClaims(env.Ctx, "Juan Dela Cruz", "2025-11-11", "2025-11-16")
	if err != nil || len(claims) != 1 {
		t.Fatalf("range must exclude earlier days: %v %v", claims, err)
	}
}
