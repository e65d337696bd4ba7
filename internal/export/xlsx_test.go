package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"crewline/internal/config"
	"crewline/internal/domain"
)

func TestWorkbookRoundTrip(t *testing.T) {
	in := "07:58"
	rec := domain.AssignmentRecord{
		EmployeeName: "Juan Dela Cruz",
		Position:     "PACKER",
		SlotIndex:    0,
		Microteam:    "MICROTEAM - 01",
	}
	rec.TimeData[2] = domain.StoredCell{TimeIn: &in}
	sheet := domain.WeeklySheet{
		WeekStart: "2025-11-10",
		Microteam: "MICROTEAM - 01",
		Records:   []domain.AssignmentRecord{rec},
	}

	data, err := Workbook(sheet, config.Default())
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()
	name := f.GetSheetName(0)
	rows, err := f.GetRows(name)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	found := false
	for _, row := range rows {
		for _, cell := range row {
			if cell == "Juan Dela Cruz" {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("employee row missing from workbook")
	}
}
