package schedule

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewline/internal/domain"
)

func testCatalog() []domain.Position {
	return []domain.Position{
		{Name: "PACKER", Slots: 8},
		{Name: "QUALITY CONTROLLER", Slots: 3},
		{Name: "SUPPORT / ABSENT", Slots: 10, Support: true},
	}
}

func strp(s string) *string { return &s }

func TestZeroFillIsDeterministic(t *testing.T) {
	a := NewGrid(testCatalog())
	b := NewGrid(testCatalog())
	require.True(t, reflect.DeepEqual(a, b))
	for _, g := range []*Grid{a, b} {
		cell := g.Slot("PACKER", 0)
		require.NotNil(t, cell)
		assert.Equal(t, "", cell.Employee)
		for _, day := range cell.Days {
			assert.Equal(t, domain.DayCell{TimeIn: "", TimeOut: ""}, day)
		}
	}
}

func TestMergeFormatsTimes(t *testing.T) {
	g := NewGrid(testCatalog())
	dropped := g.Merge(StoredSheet{
		AssignmentData: map[string][]string{"PACKER": {"Juan Dela Cruz"}},
		TimeData: map[string]map[string]map[string]domain.StoredCell{
			"PACKER": {"0": {"0": {TimeIn: strp("08:00:00"), TimeOut: nil}}},
		},
	})
	assert.Equal(t, 0, dropped)
	cell := g.Slot("PACKER", 0)
	require.NotNil(t, cell)
	assert.Equal(t, "Juan Dela Cruz", cell.Employee)
	assert.Equal(t, domain.DayCell{TimeIn: "08:00", TimeOut: ""}, cell.Days[0])
	assert.Equal(t, domain.DayCell{TimeIn: "", TimeOut: ""}, cell.Days[1])
}

func TestMergeDropsOutOfCatalogCells(t *testing.T) {
	g := NewGrid(testCatalog())
	dropped := g.Merge(StoredSheet{
		AssignmentData: map[string][]string{
			"QUALITY CONTROLLER": {"A", "B", "C", "D"}, // catalog has 3 slots
			"RETIRED POSITION":   {"E", "F"},
		},
		TimeData: map[string]map[string]map[string]domain.StoredCell{
			"QUALITY CONTROLLER": {"9": {"0": {TimeIn: strp("07:00")}}},
		},
	})
	assert.Equal(t, 4, dropped)
	assert.Equal(t, "C", g.Slot("QUALITY CONTROLLER", 2).Employee)
	assert.Nil(t, g.Slot("RETIRED POSITION", 0))
}

func TestGridFindAndOccupied(t *testing.T) {
	g := NewGrid(testCatalog())
	g.Slot("PACKER", 3).Employee = "Maria Santos"
	ref, ok := g.Find("Maria Santos")
	require.True(t, ok)
	assert.Equal(t, SlotRef{Position: "PACKER", Slot: 3}, ref)
	_, ok = g.Find("Nobody")
	assert.False(t, ok)
	assert.Equal(t, 1, g.Occupied())
}

func TestStoredRoundTrip(t *testing.T) {
	g := NewGrid(testCatalog())
	cell := g.Slot("PACKER", 1)
	cell.Employee = "Juan Dela Cruz"
	cell.Days[2] = domain.DayCell{TimeIn: "07:58", TimeOut: "17:02"}

	st := g.Stored()
	assert.Equal(t, "Juan Dela Cruz", st.AssignmentData["PACKER"][1])
	day := st.TimeData["PACKER"]["1"]["2"]
	require.NotNil(t, day.TimeIn)
	assert.Equal(t, "07:58", *day.TimeIn)
	// empty rows stay off the wire
	_, ok := st.AssignmentData["QUALITY CONTROLLER"]
	assert.False(t, ok)

	g2 := NewGrid(testCatalog())
	assert.Equal(t, 0, g2.Merge(st))
	assert.Equal(t, "Juan Dela Cruz", g2.Slot("PACKER", 1).Employee)
	assert.Equal(t, domain.DayCell{TimeIn: "07:58", TimeOut: "17:02"}, g2.Slot("PACKER", 1).Days[2])
}

func TestSelectionIndexMergeIsCommutative(t *testing.T) {
	m1 := domain.DayMembership{Microteams: map[string][]string{"MICROTEAM - 01": {"A"}}}
	m2 := domain.DayMembership{
		Microteams: map[string][]string{"MICROTEAM - 02": {"B"}},
		AddCrew:    map[string][]string{"MICROTEAM - 02": {"C"}},
	}

	ix1 := NewSelectionIndex()
	ix1.MergeDay("2025-11-10", m1)
	ix1.MergeDay("2025-11-10", m2)

	ix2 := NewSelectionIndex()
	ix2.MergeDay("2025-11-10", m2)
	ix2.MergeDay("2025-11-10", m1)

	for _, name := range []string{"A", "B", "C"} {
		t1, ok1 := ix1.TeamFor("2025-11-10", name)
		t2, ok2 := ix2.TeamFor("2025-11-10", name)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, t1, t2)
	}
	assert.Equal(t, []string{"B", "C"}, ix2.Names("MICROTEAM - 02", "2025-11-10"))
}
