// Package export writes weekly assignment sheets as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"crewline/internal/config"
	"crewline/internal/domain"
	"crewline/internal/schedule"
)

var dayHeaders = [7]string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

// Workbook renders one microteam's weekly sheet into a single-tab workbook.
// The layout mirrors the printed form: position and employee columns, then an
// in/out pair per day.
func Workbook(sheet domain.WeeklySheet, cfg *config.Config) ([]byte, error) {
	days, err := schedule.DayDates(sheet.WeekStart)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	tab := f.GetSheetName(0)

	f.SetCellValue(tab, "A1", cfg.Plant.Name)
	f.SetCellValue(tab, "A2", fmt.Sprintf("%s / week of %s", sheet.Microteam, sheet.WeekStart))

	f.SetCellValue(tab, "A4", "POSITION")
	f.SetCellValue(tab, "B4", "EMPLOYEE")
	for d := 0; d < 7; d++ {
		col, _ := excelize.ColumnNumberToName(3 + d*2)
		f.SetCellValue(tab, col+"4", fmt.Sprintf("%s %s IN", dayHeaders[d], days[d]))
		col, _ = excelize.ColumnNumberToName(4 + d*2)
		f.SetCellValue(tab, col+"4", fmt.Sprintf("%s %s OUT", dayHeaders[d], days[d]))
	}

	row := 5
	for _, rec := range orderRecords(sheet.Records, cfg) {
		f.SetCellValue(tab, fmt.Sprintf("A%d", row), fmt.Sprintf("%s #%d", rec.Position, rec.SlotIndex+1))
		name := rec.EmployeeName
		if rec.IsAddCrew {
			name += " *"
		}
		f.SetCellValue(tab, fmt.Sprintf("B%d", row), name)
		for d := 0; d < 7; d++ {
			cell := rec.TimeData[d]
			col, _ := excelize.ColumnNumberToName(3 + d*2)
			f.SetCellValue(tab, fmt.Sprintf("%s%d", col, row), schedule.FormatClock(cell.TimeIn))
			col, _ = excelize.ColumnNumberToName(4 + d*2)
			f.SetCellValue(tab, fmt.Sprintf("%s%d", col, row), schedule.FormatClock(cell.TimeOut))
		}
		row++
	}

	if len(sheet.LeaveRows) > 0 {
		row++
		f.SetCellValue(tab, fmt.Sprintf("A%d", row), "LEAVES / REMARKS")
		row++
		keys := make([]string, 0, len(sheet.LeaveRows))
		for k := range sheet.LeaveRows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f.SetCellValue(tab, fmt.Sprintf("A%d", row), k)
			f.SetCellValue(tab, fmt.Sprintf("B%d", row), sheet.LeaveRows[k])
			row++
		}
	}

	row++
	f.SetCellValue(tab, fmt.Sprintf("A%d", row), fmt.Sprintf("Prepared by: %s", sheet.PreparedBy))
	f.SetCellValue(tab, fmt.Sprintf("B%d", row), fmt.Sprintf("Checked by: %s", sheet.CheckedBy))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

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
