package schedule

import (
	"fmt"
	"time"

	"crewline/internal/domain"
)

// Eligibility is the outcome of evaluating an employee for a slot: a disabled
// flag plus a human-readable reason for tooltips. Evaluation has no side
// effects.
type Eligibility struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// ComputeLock derives the lock record for an assignment made on
// assignmentDate under the given period, as of today. The second return is
// false when the employee is outside the window (no record means unlocked).
func ComputeLock(name, assignmentDate string, period domain.LockPeriod, today time.Time) (domain.LockRecord, bool) {
	if !period.Active() {
		return domain.LockRecord{}, false
	}
	assigned, err := ParseDate(assignmentDate)
	if err != nil {
		return domain.LockRecord{}, false
	}
	day, err := ParseDate(today.Format(DateLayout))
	if err != nil {
		return domain.LockRecord{}, false
	}
	until := assigned.AddDate(0, 0, period.Days())
	remaining := int(until.Sub(day) / (24 * time.Hour))
	if remaining <= 0 {
		return domain.LockRecord{}, false
	}
	return domain.LockRecord{
		EmployeeName:   name,
		AssignmentDate: assignmentDate,
		LockUntil:      until.Format(DateLayout),
		DaysRemaining:  remaining,
	}, true
}

// Evaluate decides whether the employee may take the target slot on the
// session's working date. An employee always keeps the exact cell they
// already occupy; otherwise any of the three blockers applies:
// another slot in this team's in-progress grid, a claim by any team for the
// same date, or an active lock record.
func (s *Session) Evaluate(name string, target SlotRef) Eligibility {
	if name == "" {
		return Eligibility{}
	}
	if cell := s.Grid.Slot(target.Position, target.Slot); cell != nil && cell.Employee == name {
		return Eligibility{}
	}
	if ref, ok := s.Grid.Find(name); ok && ref != target {
		return Eligibility{
			Blocked: true,
			Reason:  fmt.Sprintf("%s is already assigned to %s slot %d in this microteam", name, ref.Position, ref.Slot+1),
		}
	}
	if team, ok := s.Index.TeamFor(s.Date, name); ok && team != s.Microteam {
		return Eligibility{
			Blocked: true,
			Reason:  fmt.Sprintf("%s is already assigned to %s on %s", name, team, s.Date),
		}
	}
	if lr, ok := s.Locks[name]; ok && lr.DaysRemaining > 0 {
		return Eligibility{
			Blocked: true,
			Reason:  fmt.Sprintf("%s is locked until %s (%d day(s) remaining)", name, lr.LockUntil, lr.DaysRemaining),
		}
	}
	return Eligibility{}
}
