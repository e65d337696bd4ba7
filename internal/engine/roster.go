package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"crewline/internal/domain"
	"crewline/internal/events"
	"crewline/internal/schedule"
)

// ConflictError reports employees already claimed by another microteam for
// the save date. Mapped to HTTP 409 by the server.
type ConflictError struct {
	Day   string
	Names []string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("already assigned to another microteam on %s: %s", e.Day, strings.Join(e.Names, ", "))
}

// Settings is the lock-window configuration in its wire shape: a pair of
// mutually exclusive flags.
type Settings struct {
	SevenDays      bool `json:"lock_period_7_days"`
	FourteenDays   bool `json:"lock_period_14_days"`
	LockPeriodDays int  `json:"lock_period_days"`
}

func (e Engine) GetSettings(ctx context.Context) (Settings, error) {
	days, err := e.Repo.GetLockPeriodDays(ctx, e.Config.Defaults.LockPeriodDays)
	if err != nil {
		return Settings{}, err
	}
	period, err := domain.LockPeriodFromDays(days)
	if err != nil {
		return Settings{}, err
	}
	seven, fourteen := period.Flags()
	return Settings{SevenDays: seven, FourteenDays: fourteen, LockPeriodDays: period.Days()}, nil
}

// UpdateSettings stores a new lock window. Both flags raised is rejected;
// both cleared disables locking entirely.
func (e Engine) UpdateSettings(ctx context.Context, seven, fourteen bool, actorID string) (Settings, error) {
	period, err := domain.LockPeriodFromFlags(seven, fourteen)
	if err != nil {
		return Settings{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Settings{}, err
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.SetLockPeriodDays(ctx, tx, period.Days(), now); err != nil {
		return Settings{}, err
	}
	if err := e.Events.Append(ctx, tx, "settings.updated", "settings", "lock_period", actorID, events.EventPayload{
		"lock_period_days": period.Days(),
	}); err != nil {
		return Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return Settings{}, err
	}
	s, f := period.Flags()
	return Settings{SevenDays: s, FourteenDays: f, LockPeriodDays: period.Days()}, nil
}

// LockedEmployees computes the active lock set from each employee's most
// recent day claim. A zero period yields an empty set.
func (e Engine) LockedEmployees(ctx context.Context, period domain.LockPeriod) ([]domain.LockRecord, error) {
	if !period.Active() {
		return []domain.LockRecord{}, nil
	}
	now := e.now()
	today := now.UTC().Format(schedule.DateLayout)
	t, err := schedule.ParseDate(today)
	if err != nil {
		return nil, err
	}
	// claims older than the window cannot produce an active lock
	fromDay := t.AddDate(0, 0, -(period.Days() - 1)).Format(schedule.DateLayout)
	claims, err := e.Repo.LatestClaims(ctx, fromDay, today)
	if err != nil {
		return nil, err
	}
	records := make([]domain.LockRecord, 0, len(claims))
	for name, c := range claims {
		if lr, ok := schedule.ComputeLock(name, c.Day, period, now); ok {
			records = append(records, lr)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EmployeeName < records[j].EmployeeName })
	return records, nil
}

// SheetFor loads the persisted sheet for the week containing date, in the
// wire shape the resolver merges from.
func (e Engine) SheetFor(ctx context.Context, microteam, date string) (schedule.StoredSheet, error) {
	if !e.Config.HasMicroteam(microteam) {
		return schedule.StoredSheet{}, fmt.Errorf("unknown microteam %q", microteam)
	}
	weekStart, err := schedule.WeekStartISO(date)
	if err != nil {
		return schedule.StoredSheet{}, err
	}
	sheet, err := e.Repo.GetSheet(ctx, weekStart, microteam)
	if err != nil {
		return schedule.StoredSheet{}, err
	}
	return e.storedForm(sheet), nil
}

func (e Engine) storedForm(sheet domain.WeeklySheet) schedule.StoredSheet {
	st := schedule.StoredSheet{
		AssignmentData: map[string][]string{},
		TimeData:       map[string]map[string]map[string]domain.StoredCell{},
		PreparedBy:     sheet.PreparedBy,
		CheckedBy:      sheet.CheckedBy,
		LeaveRows:      sheet.LeaveRows,
	}
	for _, rec := range sheet.Records {
		names := st.AssignmentData[rec.Position]
		slots := 0
		if p, ok := e.Config.Position(rec.Position); ok {
			slots = p.Slots
		}
		if rec.SlotIndex >= slots {
			slots = rec.SlotIndex + 1
		}
		for len(names) < slots {
			names = append(names, "")
		}
		names[rec.SlotIndex] = rec.EmployeeName
		st.AssignmentData[rec.Position] = names

		if st.TimeData[rec.Position] == nil {
			st.TimeData[rec.Position] = map[string]map[string]domain.StoredCell{}
		}
		days := map[string]domain.StoredCell{}
		for d := range rec.TimeData {
			days[strconv.Itoa(d)] = rec.TimeData[d]
		}
		st.TimeData[rec.Position][strconv.Itoa(rec.SlotIndex)] = days
	}
	return st
}

// SaveSheetOptions carry one store request.
type SaveSheetOptions struct {
	Microteam     string
	WeekStartDate string
	DayOfSave     string
	Assignments   []domain.AssignmentRecord
	PreparedBy    string
	CheckedBy     string
	LeaveRows     map[string]string
	PDFBase64     string
	ActorID       string
}

// SaveSheet replaces the (week, microteam) sheet and claims the save date's
// employees for the team. The claim is what later for-date queries and lock
// computation see.
func (e Engine) SaveSheet(ctx context.Context, opts SaveSheetOptions) error {
	if !e.Config.HasMicroteam(opts.Microteam) {
		return fmt.Errorf("unknown microteam %q", opts.Microteam)
	}
	weekStart, err := schedule.WeekStartISO(opts.WeekStartDate)
	if err != nil {
		return err
	}
	if weekStart != opts.WeekStartDate {
		return fmt.Errorf("week_start_date %s is not a week start (expected %s)", opts.WeekStartDate, weekStart)
	}
	if len(opts.Assignments) == 0 {
		return errors.New("no assignments to save")
	}
	dayOfSave := opts.DayOfSave
	if dayOfSave == "" {
		dayOfSave = e.today()
	} else if _, err := schedule.ParseDate(dayOfSave); err != nil {
		return err
	}

	claims := map[string]bool{}
	for i, rec := range opts.Assignments {
		if rec.EmployeeName == "" {
			return fmt.Errorf("assignment %d has no employee name", i)
		}
		if _, ok := e.Config.Position(rec.Position); !ok {
			return fmt.Errorf("unknown position %q", rec.Position)
		}
		if rec.SlotIndex < 0 {
			return fmt.Errorf("assignment %d has negative slot index", i)
		}
		claims[rec.EmployeeName] = rec.IsAddCrew
	}
	names := make([]string, 0, len(claims))
	for n := range claims {
		names = append(names, n)
	}
	conflicts, err := e.Repo.ConflictingNames(ctx, dayOfSave, opts.Microteam, names)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return ConflictError{Day: dayOfSave, Names: conflicts}
	}

	var pdf []byte
	if opts.PDFBase64 != "" {
		pdf, err = base64.StdEncoding.DecodeString(opts.PDFBase64)
		if err != nil {
			// the sheet itself still saves; the rendition is best effort
			e.Log.WithError(err).Warn("discarding undecodable sheet rendition")
			pdf = nil
		}
	}

	sheet := domain.WeeklySheet{
		WeekStart:  weekStart,
		Microteam:  opts.Microteam,
		PreparedBy: opts.PreparedBy,
		CheckedBy:  opts.CheckedBy,
		DayOfSave:  dayOfSave,
		Records:    opts.Assignments,
		LeaveRows:  opts.LeaveRows,
		UpdatedAt:  e.now().UTC().Format(time.RFC3339),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ReplaceSheet(ctx, tx, sheet, pdf); err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}
	if err := e.Repo.ReplaceDayTeam(ctx, tx, dayOfSave, opts.Microteam, claims); err != nil {
		return fmt.Errorf("replace day claims: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "roster.saved", "sheet", weekStart+"/"+opts.Microteam, opts.ActorID, events.EventPayload{
		"microteam":   opts.Microteam,
		"week_start":  weekStart,
		"day_of_save": dayOfSave,
		"assignments": len(opts.Assignments),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// DayMembership returns who each microteam claimed for one date.
func (e Engine) DayMembership(ctx context.Context, date string) (domain.DayMembership, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return domain.DayMembership{}, err
	}
	return e.Repo.DayMembership(ctx, date)
}

// WeekMembership returns per-date memberships for the week containing date.
func (e Engine) WeekMembership(ctx context.Context, date string) (string, map[string]domain.DayMembership, error) {
	weekStart, err := schedule.WeekStartISO(date)
	if err != nil {
		return "", nil, err
	}
	days, err := schedule.DayDates(weekStart)
	if err != nil {
		return "", nil, err
	}
	m, err := e.Repo.WeekMembership(ctx, days)
	if err != nil {
		return "", nil, err
	}
	return weekStart, m, nil
}

// Sheet returns the persisted sheet record, including signatures and save
// metadata, for report generation.
func (e Engine) Sheet(ctx context.Context, microteam, weekStart string) (domain.WeeklySheet, error) {
	if !e.Config.HasMicroteam(microteam) {
		return domain.WeeklySheet{}, fmt.Errorf("unknown microteam %q", microteam)
	}
	return e.Repo.GetSheet(ctx, weekStart, microteam)
}

// SheetPDF returns the stored rendition uploaded with the last save.
func (e Engine) SheetPDF(ctx context.Context, microteam, weekStart string) ([]byte, error) {
	if !e.Config.HasMicroteam(microteam) {
		return nil, fmt.Errorf("unknown microteam %q", microteam)
	}
	return e.Repo.SheetPDF(ctx, weekStart, microteam)
}
