package server

import (
	"crewline/internal/domain"
	"crewline/internal/schedule"
)

// Request payloads

type CreateEmployeeRequest struct {
	EmployeeID string  `json:"employee_id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Department *string `json:"department,omitempty"`
	WorkStatus string  `json:"work_status,omitempty" enum:"REGULAR,PROBATIONARY,CASUAL,ADD CREW"`
}

type UpdateEmployeeRequest struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Department *string `json:"department,omitempty"`
	WorkStatus *string `json:"work_status,omitempty" enum:"REGULAR,PROBATIONARY,CASUAL,ADD CREW"`
}

type LogAttendanceRequest struct {
	EmployeeID string `json:"employee_id"`
	Day        string `json:"day,omitempty" format:"date"`
	Clock      string `json:"clock,omitempty" example:"07:58"`
	Source     string `json:"source,omitempty" example:"scanner"`
}

type SettingsRequest struct {
	SevenDays    bool `json:"lock_period_7_days"`
	FourteenDays bool `json:"lock_period_14_days"`
}

type StoreSheetRequest struct {
	WeekStartDate string                    `json:"week_start_date" format:"date"`
	Microteam     string                    `json:"microteam"`
	Assignments   []domain.AssignmentRecord `json:"assignments"`
	PreparedBy    string                    `json:"prepared_by,omitempty"`
	CheckedBy     string                    `json:"checked_by,omitempty"`
	DayOfSave     string                    `json:"day_of_save,omitempty" format:"date"`
	LeaveRows     map[string]string         `json:"leave_rows,omitempty"`
	PDFBase64     string                    `json:"pdf_base64,omitempty"`
}

// Response payloads

type EmployeeResponse struct {
	ID          string                     `json:"id"`
	EmployeeID  string                     `json:"employee_id"`
	FirstName   string                     `json:"first_name"`
	LastName    string                     `json:"last_name"`
	FullName    string                     `json:"full_name"`
	Department  string                     `json:"department,omitempty"`
	WorkStatus  string                     `json:"work_status"`
	Attendances map[string]domain.DayTimes `json:"attendances,omitempty"`
	CreatedAt   string                     `json:"created_at" format:"date-time"`
	UpdatedAt   string                     `json:"updated_at" format:"date-time"`
}

type AttendanceResponse struct {
	EmployeeID string  `json:"employee_id"`
	Day        string  `json:"day" format:"date"`
	TimeIn     *string `json:"time_in"`
	TimeOut    *string `json:"time_out"`
}

type LockedEmployeesResponse struct {
	LockedEmployees []domain.LockRecord `json:"locked_employees"`
}

type DayMembershipResponse struct {
	Date       string              `json:"date" format:"date"`
	Microteams map[string][]string `json:"microteams"`
	AddCrew    map[string][]string `json:"add_crew"`
}

type WeekMembershipResponse struct {
	WeekStartDate string                           `json:"week_start_date" format:"date"`
	Days          map[string]DayMembershipResponse `json:"days"`
}

type StoredSheetResponse struct {
	WeekStartDate string `json:"week_start_date" format:"date"`
	Microteam     string `json:"microteam"`
	schedule.StoredSheet
}

type StoreResultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// Conversion helpers

func employeeResponse(e domain.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:          e.ID,
		EmployeeID:  e.EmployeeID,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		FullName:    e.FullName(),
		Department:  e.Department,
		WorkStatus:  e.WorkStatus,
		Attendances: e.Attendances,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func dayMembershipResponse(date string, m domain.DayMembership) DayMembershipResponse {
	if m.Microteams == nil {
		m.Microteams = map[string][]string{}
	}
	if m.AddCrew == nil {
		m.AddCrew = map[string][]string{}
	}
	return DayMembershipResponse{Date: date, Microteams: m.Microteams, AddCrew: m.AddCrew}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse(e)
}
