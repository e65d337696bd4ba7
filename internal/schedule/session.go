package schedule

import (
	"errors"
	"fmt"

	"crewline/internal/domain"
)

// ValidationError marks a save precondition failure: reported to the user,
// no request sent.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// Session is the in-memory working copy of one (microteam, week) grid. It is
// discarded and rebuilt when the selected week or team changes, and
// deliberately survives a successful save so in-progress edits for the rest
// of the week continue.
type Session struct {
	Microteam string
	Date      string
	WeekStart string
	Days      [7]string

	Grid  *Grid
	Index *SelectionIndex
	Locks map[string]domain.LockRecord

	PreparedBy string
	CheckedBy  string
	LeaveRows  map[string]string

	attendance map[string]map[string]domain.DayTimes
	addCrew    map[string]bool
	employees  []domain.Employee
}

// NewSession opens a working copy for the week containing date.
func NewSession(catalog []domain.Position, microteam, date string) (*Session, error) {
	weekStart, err := WeekStartISO(date)
	if err != nil {
		return nil, err
	}
	days, err := DayDates(weekStart)
	if err != nil {
		return nil, err
	}
	return &Session{
		Microteam:  microteam,
		Date:       date,
		WeekStart:  weekStart,
		Days:       days,
		Grid:       NewGrid(catalog),
		Index:      NewSelectionIndex(),
		Locks:      map[string]domain.LockRecord{},
		LeaveRows:  map[string]string{},
		attendance: map[string]map[string]domain.DayTimes{},
		addCrew:    map[string]bool{},
	}, nil
}

// SetEmployees installs the directory snapshot used for attendance
// auto-population and the add-crew partition.
func (s *Session) SetEmployees(emps []domain.Employee) {
	s.employees = emps
	s.attendance = make(map[string]map[string]domain.DayTimes, len(emps))
	s.addCrew = make(map[string]bool, len(emps))
	for _, e := range emps {
		name := e.FullName()
		s.attendance[name] = e.Attendances
		s.addCrew[name] = e.IsAddCrew()
	}
}

// SetLocks replaces the lock record set, typically after the lock-period
// setting changed. Until a refresh lands, the previous set stays in effect.
func (s *Session) SetLocks(records []domain.LockRecord) {
	s.Locks = make(map[string]domain.LockRecord, len(records))
	for _, lr := range records {
		s.Locks[lr.EmployeeName] = lr
	}
}

// LoadStored merges a stored sheet into the zero-filled grid and returns the
// number of stored cells the catalog could not place.
func (s *Session) LoadStored(st StoredSheet) int {
	dropped := s.Grid.Merge(st)
	if st.PreparedBy != "" {
		s.PreparedBy = st.PreparedBy
	}
	if st.CheckedBy != "" {
		s.CheckedBy = st.CheckedBy
	}
	for k, v := range st.LeaveRows {
		s.LeaveRows[k] = v
	}
	for i := range s.Grid.Rows {
		row := &s.Grid.Rows[i]
		for j := range row.Slots {
			if row.Slots[j].Employee != "" {
				row.Slots[j].IsAddCrew = s.addCrew[row.Slots[j].Employee]
			}
		}
	}
	return dropped
}

// CandidatesFor applies the temporary-crew partition: the support bucket only
// offers add-crew employees, every other position excludes them. This filter
// runs before eligibility checking and is not part of the lock/selection rule.
func (s *Session) CandidatesFor(position string) []domain.Employee {
	var support bool
	for i := range s.Grid.Rows {
		if s.Grid.Rows[i].Position.Name == position {
			support = s.Grid.Rows[i].Position.Support
		}
	}
	var out []domain.Employee
	for _, e := range s.employees {
		if e.IsAddCrew() == support {
			out = append(out, e)
		}
	}
	return out
}

// Assign is the local-state slot mutation: it maintains the selection index
// and auto-populates the seven day-cells from the employee's recorded
// attendance for this week. It never contacts the server.
func (s *Session) Assign(target SlotRef, name string) error {
	cell := s.Grid.Slot(target.Position, target.Slot)
	if cell == nil {
		return fmt.Errorf("unknown slot %s[%d]", target.Position, target.Slot)
	}
	if name != "" {
		if el := s.Evaluate(name, target); el.Blocked {
			return errors.New(el.Reason)
		}
	}
	if prev := cell.Employee; prev != "" {
		s.Index.Remove(s.Microteam, s.Date, prev)
	}
	cell.Employee = name
	cell.IsAddCrew = s.addCrew[name]
	if name == "" {
		cell.Days = [7]domain.DayCell{}
		return nil
	}
	s.Index.Add(s.Microteam, s.Date, name)
	att := s.attendance[name]
	for i, day := range s.Days {
		var c domain.DayCell
		if dt, ok := att[day]; ok {
			c = domain.DayCell{TimeIn: FormatClock(dt.TimeIn), TimeOut: FormatClock(dt.TimeOut)}
		}
		cell.Days[i] = c
	}
	return nil
}

// SavePayload is the store request body.
type SavePayload struct {
	WeekStartDate string                    `json:"week_start_date"`
	Assignments   []domain.AssignmentRecord `json:"assignments"`
	PreparedBy    string                    `json:"prepared_by,omitempty"`
	CheckedBy     string                    `json:"checked_by,omitempty"`
	DayOfSave     string                    `json:"day_of_save"`
	LeaveRows     map[string]string         `json:"leave_rows,omitempty"`
	PDFBase64     string                    `json:"pdf_base64,omitempty"`
}

// BuildSave validates the save preconditions and flattens the grid into
// assignment records with normalized times. PDF attachment is the caller's
// best-effort concern.
func (s *Session) BuildSave() (SavePayload, error) {
	if s.Microteam == "" {
		return SavePayload{}, ValidationError{Msg: "no microteam selected"}
	}
	if s.Grid.Occupied() == 0 {
		return SavePayload{}, ValidationError{Msg: "no assignments selected"}
	}
	payload := SavePayload{
		WeekStartDate: s.WeekStart,
		PreparedBy:    s.PreparedBy,
		CheckedBy:     s.CheckedBy,
		DayOfSave:     s.Date,
	}
	if len(s.LeaveRows) > 0 {
		payload.LeaveRows = s.LeaveRows
	}
	for i := range s.Grid.Rows {
		row := &s.Grid.Rows[i]
		for j := range row.Slots {
			cell := &row.Slots[j]
			if cell.Employee == "" {
				continue
			}
			rec := domain.AssignmentRecord{
				EmployeeName: cell.Employee,
				Position:     row.Position.Name,
				SlotIndex:    j,
				Microteam:    s.Microteam,
				IsAddCrew:    cell.IsAddCrew,
			}
			for d := range cell.Days {
				rec.TimeData[d] = domain.StoredCell{
					TimeIn:  NormalizeTime(cell.Days[d].TimeIn),
					TimeOut: NormalizeTime(cell.Days[d].TimeOut),
				}
			}
			payload.Assignments = append(payload.Assignments, rec)
		}
	}
	return payload, nil
}

// RebuildIndex replaces the selection index from per-day membership, e.g.
// after a save or a week change. Missing days are simply absent (partial
// index), never fatal.
func (s *Session) RebuildIndex(days map[string]domain.DayMembership) {
	s.Index.Reset()
	for date, m := range days {
		s.Index.MergeDay(date, m)
	}
}
