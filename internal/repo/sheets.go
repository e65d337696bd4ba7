package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"crewline/internal/domain"
)

// GetSheet loads one persisted weekly sheet. ErrNotFound when the
// (week, microteam) pair was never saved.
func (r Repo) GetSheet(ctx context.Context, weekStart, microteam string) (domain.WeeklySheet, error) {
	var s domain.WeeklySheet
	var prepared, checked, dayOfSave sql.NullString
	err := r.DB.QueryRowContext(ctx,
		`SELECT week_start, microteam, prepared_by, checked_by, day_of_save, updated_at
		 FROM weekly_sheets WHERE week_start=? AND microteam=?`, weekStart, microteam).
		Scan(&s.WeekStart, &s.Microteam, &prepared, &checked, &dayOfSave, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.PreparedBy = prepared.String
	s.CheckedBy = checked.String
	s.DayOfSave = dayOfSave.String

	rows, err := r.DB.QueryContext(ctx,
		`SELECT position, slot_index, employee_name, is_add_crew, time_json
		 FROM sheet_slots WHERE week_start=? AND microteam=? ORDER BY position, slot_index`, weekStart, microteam)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec domain.AssignmentRecord
		var timeJSON string
		if err := rows.Scan(&rec.Position, &rec.SlotIndex, &rec.EmployeeName, &rec.IsAddCrew, &timeJSON); err != nil {
			return s, err
		}
		rec.Microteam = microteam
		if err := json.Unmarshal([]byte(timeJSON), &rec.TimeData); err != nil {
			return s, err
		}
		s.Records = append(s.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	leave, err := r.leaveRows(ctx, weekStart, microteam)
	if err != nil {
		return s, err
	}
	s.LeaveRows = leave
	return s, nil
}

func (r Repo) leaveRows(ctx context.Context, weekStart, microteam string) (map[string]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT row_key, value FROM leave_rows WHERE week_start=? AND microteam=?`, weekStart, microteam)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res map[string]string
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if res == nil {
			res = map[string]string{}
		}
		res[k] = v
	}
	return res, rows.Err()
}

// ReplaceSheet overwrites one (week, microteam) sheet wholesale. The previous
// slot and leave rows are discarded; a save is always a full replacement.
func (r Repo) ReplaceSheet(ctx context.Context, tx *sql.Tx, s domain.WeeklySheet, pdf []byte) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO weekly_sheets(week_start,microteam,prepared_by,checked_by,day_of_save,pdf,updated_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(week_start,microteam) DO UPDATE SET
  prepared_by=excluded.prepared_by, checked_by=excluded.checked_by,
  day_of_save=excluded.day_of_save, pdf=excluded.pdf, updated_at=excluded.updated_at`,
		s.WeekStart, s.Microteam, nullable(s.PreparedBy), nullable(s.CheckedBy), nullable(s.DayOfSave), pdf, s.UpdatedAt)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_slots WHERE week_start=? AND microteam=?`, s.WeekStart, s.Microteam); err != nil {
		return err
	}
	for _, rec := range s.Records {
		timeJSON, err := json.Marshal(rec.TimeData)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_slots(week_start,microteam,position,slot_index,employee_name,is_add_crew,time_json) VALUES (?,?,?,?,?,?,?)`,
			s.WeekStart, s.Microteam, rec.Position, rec.SlotIndex, rec.EmployeeName, rec.IsAddCrew, string(timeJSON)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM leave_rows WHERE week_start=? AND microteam=?`, s.WeekStart, s.Microteam); err != nil {
		return err
	}
	for k, v := range s.LeaveRows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leave_rows(week_start,microteam,row_key,value) VALUES (?,?,?,?)`,
			s.WeekStart, s.Microteam, k, v); err != nil {
			return err
		}
	}
	return nil
}

// SheetPDF returns the stored rendition for one sheet, or ErrNotFound when
// the sheet was saved without one.
func (r Repo) SheetPDF(ctx context.Context, weekStart, microteam string) ([]byte, error) {
	var pdf []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT pdf FROM weekly_sheets WHERE week_start=? AND microteam=?`, weekStart, microteam).Scan(&pdf)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, ErrNotFound
	}
	return pdf, nil
}

// ConflictingNames returns, among the given names, those already claimed for
// the date by a different microteam. Re-saving the same team's own claims is
// never a conflict.
func (r Repo) ConflictingNames(ctx context.Context, day, microteam string, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT employee_name, microteam FROM day_assignments WHERE day=?`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claimed := map[string]string{}
	for rows.Next() {
		var name, team string
		if err := rows.Scan(&name, &team); err != nil {
			return nil, err
		}
		claimed[name] = team
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var conflicts []string
	for _, n := range names {
		if team, ok := claimed[n]; ok && team != microteam {
			conflicts = append(conflicts, n)
		}
	}
	sort.Strings(conflicts)
	return conflicts, nil
}

// ReplaceDayTeam swaps the date's claims for one microteam with the given set.
func (r Repo) ReplaceDayTeam(ctx context.Context, tx *sql.Tx, day, microteam string, names map[string]bool) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM day_assignments WHERE day=? AND microteam=?`, day, microteam); err != nil {
		return err
	}
	for name, addCrew := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO day_assignments(day,microteam,employee_name,is_add_crew) VALUES (?,?,?,?)`,
			day, microteam, name, addCrew); err != nil {
			return err
		}
	}
	return nil
}

// DayMembership groups the date's claims into regular and add-crew sets.
func (r Repo) DayMembership(ctx context.Context, day string) (domain.DayMembership, error) {
	m := domain.DayMembership{
		Microteams: map[string][]string{},
		AddCrew:    map[string][]string{},
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT microteam, employee_name, is_add_crew FROM day_assignments WHERE day=? ORDER BY microteam, employee_name`, day)
	if err != nil {
		return m, err
	}
	defer rows.Close()
	for rows.Next() {
		var team, name string
		var addCrew bool
		if err := rows.Scan(&team, &name, &addCrew); err != nil {
			return m, err
		}
		if addCrew {
			m.AddCrew[team] = append(m.AddCrew[team], name)
		} else {
			m.Microteams[team] = append(m.Microteams[team], name)
		}
	}
	return m, rows.Err()
}

// WeekMembership returns per-date memberships for the seven dates starting at
// weekStart. Dates with no claims map to empty groups.
func (r Repo) WeekMembership(ctx context.Context, days [7]string) (map[string]domain.DayMembership, error) {
	res := make(map[string]domain.DayMembership, 7)
	for _, day := range days {
		m, err := r.DayMembership(ctx, day)
		if err != nil {
			return nil, err
		}
		res[day] = m
	}
	return res, nil
}

// EmployeeClaims returns every (day, microteam) claim for one employee name
// within the inclusive date range, newest day first.
func (r Repo) EmployeeClaims(ctx context.Context, name, fromDay, toDay string) ([]DayClaim, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT day, microteam, is_add_crew FROM day_assignments
		 WHERE employee_name=? AND day >= ? AND day <= ? ORDER BY day DESC`, name, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []DayClaim
	for rows.Next() {
		var c DayClaim
		if err := rows.Scan(&c.Day, &c.Microteam, &c.IsAddCrew); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

type DayClaim struct {
	Day       string `json:"day"`
	Microteam string `json:"microteam"`
	IsAddCrew bool   `json:"is_add_crew"`
}

// LatestClaims returns each employee's most recent claim on or before the
// given day, scanning back over the lock horizon.
func (r Repo) LatestClaims(ctx context.Context, fromDay, toDay string) (map[string]DayClaim, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT employee_name, day, microteam, is_add_crew FROM day_assignments
		 WHERE day >= ? AND day <= ? ORDER BY day ASC`, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]DayClaim{}
	for rows.Next() {
		var name string
		var c DayClaim
		if err := rows.Scan(&name, &c.Day, &c.Microteam, &c.IsAddCrew); err != nil {
			return nil, err
		}
		// ascending scan keeps the newest claim per name
		res[name] = c
	}
	return res, rows.Err()
}

// GetLockPeriodDays reads the stored lock window, falling back to the given
// default when settings were never written.
func (r Repo) GetLockPeriodDays(ctx context.Context, fallback int) (int, error) {
	var days int
	err := r.DB.QueryRowContext(ctx, `SELECT lock_period_days FROM settings WHERE id=1`).Scan(&days)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	return days, nil
}

func (r Repo) SetLockPeriodDays(ctx context.Context, tx *sql.Tx, days int, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO settings(id,lock_period_days,updated_at) VALUES (1,?,?)
ON CONFLICT(id) DO UPDATE SET lock_period_days=excluded.lock_period_days, updated_at=excluded.updated_at`,
		days, updatedAt)
	return err
}
