// Package crewlinesdk is a Crewline HTTP API client plus the in-memory
// assignment session built on top of it.
package crewlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"crewline/internal/domain"
	"crewline/internal/schedule"
)

// Client is a minimal Crewline HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Log        *logrus.Logger
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Log:     logrus.StandardLogger(),
	}
}

func (c *Client) log() *logrus.Logger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

// Employee mirrors the API employee model.
type Employee = domain.Employee

// Settings is the lock-period configuration.
type Settings struct {
	SevenDays      bool `json:"lock_period_7_days"`
	FourteenDays   bool `json:"lock_period_14_days"`
	LockPeriodDays int  `json:"lock_period_days"`
}

// DayMembership is the per-date claim listing. Older servers return add_crew
// as a flat array rather than a per-team map; both forms decode.
type DayMembership struct {
	Date       string              `json:"date"`
	Microteams map[string][]string `json:"microteams"`
	AddCrew    map[string][]string `json:"add_crew"`
}

func (m *DayMembership) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date       string              `json:"date"`
		Microteams map[string][]string `json:"microteams"`
		AddCrew    json.RawMessage     `json:"add_crew"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Date = raw.Date
	m.Microteams = raw.Microteams
	m.AddCrew = map[string][]string{}
	if len(raw.AddCrew) == 0 {
		return nil
	}
	trimmed := bytes.TrimSpace(raw.AddCrew)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		// legacy flat array form: no team attribution available
		var names []string
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return err
		}
		if len(names) > 0 {
			m.AddCrew["ADD CREW"] = names
		}
		return nil
	}
	return json.Unmarshal(trimmed, &m.AddCrew)
}

// WeekMembership is the range form of the for-date query.
type WeekMembership struct {
	WeekStartDate string                   `json:"week_start_date"`
	Days          map[string]DayMembership `json:"days"`
}

// StoredSheet is a saved weekly grid as served by by-microteam.
type StoredSheet struct {
	WeekStartDate string `json:"week_start_date"`
	Microteam     string `json:"microteam"`
	schedule.StoredSheet
}

// StoreResult is the store endpoint acknowledgement.
type StoreResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// APIError wraps non-2xx responses, carrying the decoded envelope when the
// server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	ae, ok := err.(*APIError)
	return ok && ae.StatusCode == http.StatusNotFound
}

// Employees fetches the directory with attendance for the date range.
func (c *Client) Employees(ctx context.Context, startDate, endDate string) ([]Employee, error) {
	var resp []Employee
	endpoint := fmt.Sprintf("api/employees/packing-plant?start_date=%s&end_date=%s",
		url.QueryEscape(startDate), url.QueryEscape(endDate))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateEmployee registers an employee.
func (c *Client) CreateEmployee(ctx context.Context, employeeID, firstName, lastName, department, workStatus string) (Employee, error) {
	body := map[string]any{
		"employee_id": employeeID,
		"first_name":  firstName,
		"last_name":   lastName,
	}
	if department != "" {
		body["department"] = department
	}
	if workStatus != "" {
		body["work_status"] = workStatus
	}
	var resp Employee
	err := c.do(ctx, http.MethodPost, "api/employees", body, &resp)
	return resp, err
}

// LogAttendance records a scan for the badge.
func (c *Client) LogAttendance(ctx context.Context, employeeID, day, clock, source string) (domain.DayTimes, error) {
	body := map[string]any{"employee_id": employeeID}
	if day != "" {
		body["day"] = day
	}
	if clock != "" {
		body["clock"] = clock
	}
	if source != "" {
		body["source"] = source
	}
	var resp struct {
		TimeIn  *string `json:"time_in"`
		TimeOut *string `json:"time_out"`
	}
	err := c.do(ctx, http.MethodPost, "api/attendance/log", body, &resp)
	return domain.DayTimes{TimeIn: resp.TimeIn, TimeOut: resp.TimeOut}, err
}

// Settings fetches the lock-period configuration.
func (c *Client) Settings(ctx context.Context) (Settings, error) {
	var resp Settings
	err := c.do(ctx, http.MethodGet, "api/daily-checking/settings", nil, &resp)
	return resp, err
}

// UpdateSettings persists the lock-period flags.
func (c *Client) UpdateSettings(ctx context.Context, sevenDays, fourteenDays bool) (Settings, error) {
	body := map[string]any{
		"lock_period_7_days":  sevenDays,
		"lock_period_14_days": fourteenDays,
	}
	var resp Settings
	err := c.do(ctx, http.MethodPost, "api/daily-checking/settings", body, &resp)
	return resp, err
}

// LockedEmployees fetches active lock records for the given window in days.
func (c *Client) LockedEmployees(ctx context.Context, lockPeriod int) ([]domain.LockRecord, error) {
	var resp struct {
		LockedEmployees []domain.LockRecord `json:"locked_employees"`
	}
	endpoint := fmt.Sprintf("api/daily-checking/locked-employees?lock_period=%d", lockPeriod)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.LockedEmployees, err
}

// ForDate fetches one date's microteam membership.
func (c *Client) ForDate(ctx context.Context, date string) (DayMembership, error) {
	var resp DayMembership
	endpoint := "api/daily-checking/for-date?date=" + url.QueryEscape(date)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ForWeek fetches membership for the whole week in one call.
func (c *Client) ForWeek(ctx context.Context, weekStartDate string) (WeekMembership, error) {
	var resp WeekMembership
	endpoint := "api/daily-checking/for-week?week_start_date=" + url.QueryEscape(weekStartDate)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ByMicroteam fetches a saved weekly grid.
func (c *Client) ByMicroteam(ctx context.Context, weekStartDate, microteam string) (StoredSheet, error) {
	var resp StoredSheet
	endpoint := fmt.Sprintf("api/daily-checking/by-microteam?week_start_date=%s&microteam=%s",
		url.QueryEscape(weekStartDate), url.QueryEscape(microteam))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Store persists a weekly grid.
func (c *Client) Store(ctx context.Context, microteam string, payload schedule.SavePayload) (StoreResult, error) {
	body := map[string]any{
		"week_start_date": payload.WeekStartDate,
		"microteam":       microteam,
		"assignments":     payload.Assignments,
		"prepared_by":     payload.PreparedBy,
		"checked_by":      payload.CheckedBy,
		"day_of_save":     payload.DayOfSave,
	}
	if len(payload.LeaveRows) > 0 {
		body["leave_rows"] = payload.LeaveRows
	}
	if payload.PDFBase64 != "" {
		body["pdf_base64"] = payload.PDFBase64
	}
	var resp StoreResult
	err := c.do(ctx, http.MethodPost, "api/daily-checking/store", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		ae := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			ae.Code = envelope.Error.Code
			ae.Message = envelope.Error.Message
		}
		return ae
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
