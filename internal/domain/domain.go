package domain

import "strings"

// Work status catalog. AddCrew marks temporary crew handled through the
// dedicated support position bucket.
const (
	WorkStatusRegular      = "REGULAR"
	WorkStatusProbationary = "PROBATIONARY"
	WorkStatusCasual       = "CASUAL"
	WorkStatusAddCrew      = "ADD CREW"
)

var WorkStatuses = []string{
	WorkStatusRegular,
	WorkStatusProbationary,
	WorkStatusCasual,
	WorkStatusAddCrew,
}

func ValidWorkStatus(s string) bool {
	for _, w := range WorkStatuses {
		if w == s {
			return true
		}
	}
	return false
}

// DayTimes is one attendance stamp pair. A nil field means the stamp was
// never recorded; an absent map key means no attendance record at all for
// that date, which is a distinct state from "absent".
type DayTimes struct {
	TimeIn  *string `json:"time_in"`
	TimeOut *string `json:"time_out"`
}

type Employee struct {
	ID          string              `json:"id"`
	EmployeeID  string              `json:"employee_id"`
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	Department  string              `json:"department,omitempty"`
	WorkStatus  string              `json:"work_status"`
	Attendances map[string]DayTimes `json:"attendances,omitempty"`
	CreatedAt   string              `json:"created_at" format:"date-time"`
	UpdatedAt   string              `json:"updated_at" format:"date-time"`
}

// FullName is the display name used as the assignment key on sheets.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e Employee) IsAddCrew() bool {
	return e.WorkStatus == WorkStatusAddCrew
}

// Position is one entry in the static slot catalog. Slot counts are fixed at
// configuration time; slot identity is (position name, index).
type Position struct {
	Name    string `json:"name" yaml:"name"`
	Slots   int    `json:"slots" yaml:"slots"`
	Support bool   `json:"support,omitempty" yaml:"support,omitempty"`
}

// DayCell is the in-memory form of one day on the grid: empty string, never
// null, never seconds.
type DayCell struct {
	TimeIn  string `json:"time_in"`
	TimeOut string `json:"time_out"`
}

// StoredCell is the wire/persisted form: explicit null for an absent stamp.
type StoredCell struct {
	TimeIn  *string `json:"time_in,omitempty"`
	TimeOut *string `json:"time_out,omitempty"`
}

// AssignmentRecord is one occupied slot flattened for transmission/storage.
type AssignmentRecord struct {
	EmployeeName string        `json:"employee_name"`
	Position     string        `json:"position_field"`
	SlotIndex    int           `json:"slot_index"`
	Microteam    string        `json:"microteam"`
	IsAddCrew    bool          `json:"is_add_crew,omitempty"`
	TimeData     [7]StoredCell `json:"time_data,omitempty"`
}

// WeeklySheet is a persisted weekly assignment grid for one microteam.
type WeeklySheet struct {
	WeekStart  string             `json:"week_start_date"`
	Microteam  string             `json:"microteam"`
	PreparedBy string             `json:"prepared_by,omitempty"`
	CheckedBy  string             `json:"checked_by,omitempty"`
	DayOfSave  string             `json:"day_of_save,omitempty"`
	Records    []AssignmentRecord `json:"records"`
	LeaveRows  map[string]string  `json:"leave_rows,omitempty"`
	UpdatedAt  string             `json:"updated_at,omitempty" format:"date-time"`
}

// DayMembership groups the employees claimed for one calendar date.
type DayMembership struct {
	Microteams map[string][]string `json:"microteams"`
	AddCrew    map[string][]string `json:"add_crew"`
}

// LockRecord exists only while an employee is inside the configured lock
// window; absence means unlocked.
type LockRecord struct {
	EmployeeName   string `json:"employee_name"`
	AssignmentDate string `json:"assignment_date"`
	LockUntil      string `json:"lock_until"`
	DaysRemaining  int    `json:"days_remaining"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
