package schedule

import (
	"strconv"

	"crewline/internal/domain"
)

// SlotRef identifies one seat on the grid.
type SlotRef struct {
	Position string
	Slot     int
}

// SlotCell is one seat: its occupant and a fixed week of day-cells.
type SlotCell struct {
	Employee  string
	IsAddCrew bool
	Days      [7]domain.DayCell
}

// PositionRow is a catalog position with its declared seats.
type PositionRow struct {
	Position domain.Position
	Slots    []SlotCell
}

// Grid is a weekly assignment grid shaped by the static position catalog.
// The shape is fixed at construction; stored data can only fill cells that
// the catalog declares.
type Grid struct {
	Rows []PositionRow
}

// NewGrid builds a zero-filled grid: every catalog position with its declared
// slot count, every slot with seven empty day-cells.
func NewGrid(catalog []domain.Position) *Grid {
	g := &Grid{Rows: make([]PositionRow, 0, len(catalog))}
	for _, p := range catalog {
		g.Rows = append(g.Rows, PositionRow{
			Position: p,
			Slots:    make([]SlotCell, p.Slots),
		})
	}
	return g
}

func (g *Grid) row(position string) *PositionRow {
	for i := range g.Rows {
		if g.Rows[i].Position.Name == position {
			return &g.Rows[i]
		}
	}
	return nil
}

// Slot returns the cell at (position, idx), or nil if the catalog does not
// declare it.
func (g *Grid) Slot(position string, idx int) *SlotCell {
	row := g.row(position)
	if row == nil || idx < 0 || idx >= len(row.Slots) {
		return nil
	}
	return &row.Slots[idx]
}

// Find locates an employee's seat within the grid.
func (g *Grid) Find(name string) (SlotRef, bool) {
	if name == "" {
		return SlotRef{}, false
	}
	for i := range g.Rows {
		for j := range g.Rows[i].Slots {
			if g.Rows[i].Slots[j].Employee == name {
				return SlotRef{Position: g.Rows[i].Position.Name, Slot: j}, true
			}
		}
	}
	return SlotRef{}, false
}

// Occupied counts non-empty seats.
func (g *Grid) Occupied() int {
	n := 0
	for i := range g.Rows {
		for j := range g.Rows[i].Slots {
			if g.Rows[i].Slots[j].Employee != "" {
				n++
			}
		}
	}
	return n
}

// StoredSheet is the wire form of a persisted sheet as served by the
// by-microteam endpoint: open-keyed maps, slot and day indices as strings.
type StoredSheet struct {
	AssignmentData map[string][]string                            `json:"assignment_data"`
	TimeData       map[string]map[string]map[string]domain.StoredCell `json:"time_data"`
	PreparedBy     string                                         `json:"prepared_by,omitempty"`
	CheckedBy      string                                         `json:"checked_by,omitempty"`
	LeaveRows      map[string]string                              `json:"leave_rows,omitempty"`
}

// Merge overlays stored data onto the zero-filled grid, index by index.
// Positions or indices the catalog does not declare are dropped; the count of
// dropped cells is returned so callers can surface the data loss. A stored
// null stamp collapses to the empty string.
func (g *Grid) Merge(stored StoredSheet) (dropped int) {
	for pos, names := range stored.AssignmentData {
		row := g.row(pos)
		if row == nil {
			dropped += len(names)
			continue
		}
		for i, name := range names {
			if i >= len(row.Slots) {
				dropped++
				continue
			}
			row.Slots[i].Employee = name
		}
	}
	for pos, slots := range stored.TimeData {
		row := g.row(pos)
		if row == nil {
			continue
		}
		for slotKey, days := range slots {
			idx, err := strconv.Atoi(slotKey)
			if err != nil || idx < 0 {
				continue
			}
			if idx >= len(row.Slots) {
				dropped++
				continue
			}
			for dayKey, cell := range days {
				d, err := strconv.Atoi(dayKey)
				if err != nil || d < 0 || d > 6 {
					continue
				}
				row.Slots[idx].Days[d] = domain.DayCell{
					TimeIn:  FormatClock(cell.TimeIn),
					TimeOut: FormatClock(cell.TimeOut),
				}
			}
		}
	}
	return dropped
}

// Stored converts the grid back to the wire form.
func (g *Grid) Stored() StoredSheet {
	st := StoredSheet{
		AssignmentData: map[string][]string{},
		TimeData:       map[string]map[string]map[string]domain.StoredCell{},
	}
	for i := range g.Rows {
		row := &g.Rows[i]
		names := make([]string, len(row.Slots))
		occupied := false
		for j := range row.Slots {
			names[j] = row.Slots[j].Employee
			if names[j] != "" {
				occupied = true
			}
		}
		if !occupied {
			continue
		}
		st.AssignmentData[row.Position.Name] = names
		times := map[string]map[string]domain.StoredCell{}
		for j := range row.Slots {
			if row.Slots[j].Employee == "" {
				continue
			}
			days := map[string]domain.StoredCell{}
			for d := range row.Slots[j].Days {
				days[strconv.Itoa(d)] = domain.StoredCell{
					TimeIn:  NormalizeTime(row.Slots[j].Days[d].TimeIn),
					TimeOut: NormalizeTime(row.Slots[j].Days[d].TimeOut),
				}
			}
			times[strconv.Itoa(j)] = days
		}
		st.TimeData[row.Position.Name] = times
	}
	return st
}
