// Package pdfgen renders a weekly assignment sheet as a printable PDF.
package pdfgen

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-pdf/fpdf"

	"crewline/internal/config"
	"crewline/internal/domain"
	"crewline/internal/schedule"
)

var dayHeaders = [7]string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

// Render produces the landscape sheet: one row per occupied slot, a pair of
// in/out columns per day. Day columns carry the actual calendar dates so a
// printed sheet stands on its own.
func Render(sheet domain.WeeklySheet, cfg *config.Config) ([]byte, error) {
	days, err := schedule.DayDates(sheet.WeekStart)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, cfg.Plant.Name, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s  /  week of %s", sheet.Microteam, sheet.WeekStart), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	const (
		nameW = 62
		posW  = 43
		dayW  = 24.0
		rowH  = 5.5
	)

	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(posW, rowH*2, "POSITION", "1", 0, "C", true, 0, "")
	pdf.CellFormat(nameW, rowH*2, "EMPLOYEE", "1", 0, "C", true, 0, "")
	x, y := pdf.GetXY()
	for i, d := range dayHeaders {
		pdf.CellFormat(dayW, rowH, fmt.Sprintf("%s %s", d, days[i][5:]), "1", 0, "C", true, 0, "")
	}
	pdf.SetXY(x, y+rowH)
	for range dayHeaders {
		pdf.CellFormat(dayW/2, rowH, "IN", "1", 0, "C", true, 0, "")
		pdf.CellFormat(dayW/2, rowH, "OUT", "1", 0, "C", true, 0, "")
	}
	pdf.Ln(rowH)

	pdf.SetFont("Helvetica", "", 7)
	for _, rec := range orderRecords(sheet.Records, cfg) {
		pdf.CellFormat(posW, rowH, fmt.Sprintf("%s #%d", rec.Position, rec.SlotIndex+1), "1", 0, "L", false, 0, "")
		name := rec.EmployeeName
		if rec.IsAddCrew {
			name += " *"
		}
		pdf.CellFormat(nameW, rowH, name, "1", 0, "L", false, 0, "")
		for d := 0; d < 7; d++ {
			cell := rec.TimeData[d]
			pdf.CellFormat(dayW/2, rowH, schedule.FormatClock(cell.TimeIn), "1", 0, "C", false, 0, "")
			pdf.CellFormat(dayW/2, rowH, schedule.FormatClock(cell.TimeOut), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(rowH)
	}

	if len(sheet.LeaveRows) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(0, 5, "LEAVES / REMARKS", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		keys := make([]string, 0, len(sheet.LeaveRows))
		for k := range sheet.LeaveRows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pdf.CellFormat(0, 5, fmt.Sprintf("%s: %s", k, sheet.LeaveRows[k]), "", 1, "L", false, 0, "")
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(90, 6, fmt.Sprintf("Prepared by: %s", sheet.PreparedBy), "", 0, "L", false, 0, "")
	pdf.CellFormat(90, 6, fmt.Sprintf("Checked by: %s", sheet.CheckedBy), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// orderRecords sorts by catalog position order, then slot index, so the
// printed sheet matches the on-screen grid top to bottom.
func orderRecords(records []domain.AssignmentRecord, cfg *config.Config) []domain.AssignmentRecord {
	rank := make(map[string]int, len(cfg.Positions))
	for i, p := range cfg.Positions {
		rank[p.Name] = i
	}
	out := make([]domain.AssignmentRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iOK := rank[out[i].Position]
		rj, jOK := rank[out[j].Position]
		if !iOK || !jOK {
			return out[i].Position < out[j].Position
		}
		if ri != rj {
			return ri < rj
		}
		return out[i].SlotIndex < out[j].SlotIndex
	})
	return out
}
