package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewline/internal/domain"
)

func testEmployees() []domain.Employee {
	return []domain.Employee{
		{
			FirstName: "Juan", LastName: "Dela Cruz", WorkStatus: domain.WorkStatusRegular,
			Attendances: map[string]domain.DayTimes{
				"2025-11-10": {TimeIn: strp("07:58:00"), TimeOut: strp("17:02:00")},
			},
		},
		{FirstName: "Maria", LastName: "Santos", WorkStatus: domain.WorkStatusRegular},
		{FirstName: "Pedro", LastName: "Reyes", WorkStatus: domain.WorkStatusAddCrew},
	}
}

func newTestSession(t *testing.T, microteam, date string) *Session {
	t.Helper()
	s, err := NewSession(testCatalog(), microteam, date)
	require.NoError(t, err)
	s.SetEmployees(testEmployees())
	return s
}

func TestAssignPopulatesWeekFromAttendance(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	require.Equal(t, "2025-11-10", s.WeekStart)

	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, "Juan Dela Cruz"))

	cell := s.Grid.Slot("PACKER", 0)
	assert.Equal(t, domain.DayCell{TimeIn: "07:58", TimeOut: "17:02"}, cell.Days[0])
	for d := 1; d < 7; d++ {
		assert.Equal(t, domain.DayCell{TimeIn: "", TimeOut: ""}, cell.Days[d])
	}
	assert.Equal(t, []string{"Juan Dela Cruz"}, s.Index.Names("MICROTEAM - 01", "2025-11-10"))
}

func TestAssignRejectsSecondSlotSameTeam(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, "Juan Dela Cruz"))

	err := s.Assign(SlotRef{Position: "PACKER", Slot: 1}, "Juan Dela Cruz")
	require.Error(t, err)
	err = s.Assign(SlotRef{Position: "QUALITY CONTROLLER", Slot: 0}, "Juan Dela Cruz")
	require.Error(t, err)

	// the employee appears in exactly one cell regardless of the attempts
	count := 0
	for i := range s.Grid.Rows {
		for j := range s.Grid.Rows[i].Slots {
			if s.Grid.Rows[i].Slots[j].Employee == "Juan Dela Cruz" {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
}

func TestAssignRejectsCrossTeamSameDate(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 02", "2025-11-10")
	s.Index.Add("MICROTEAM - 01", "2025-11-10", "Juan Dela Cruz")

	err := s.Assign(SlotRef{Position: "PACKER", Slot: 0}, "Juan Dela Cruz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MICROTEAM - 01")

	// the claiming team itself may re-select the employee
	own := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	own.Index.Add("MICROTEAM - 01", "2025-11-10", "Juan Dela Cruz")
	require.NoError(t, own.Assign(SlotRef{Position: "PACKER", Slot: 2}, "Juan Dela Cruz"))
}

func TestReassignWithinTeamMovesSlot(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, "Maria Santos"))
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, ""))
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 4}, "Maria Santos"))

	assert.Equal(t, "", s.Grid.Slot("PACKER", 0).Employee)
	assert.Equal(t, "Maria Santos", s.Grid.Slot("PACKER", 4).Employee)
	assert.Equal(t, []string{"Maria Santos"}, s.Index.Names("MICROTEAM - 01", "2025-11-10"))
}

func TestClearingSlotResetsDayCells(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, "Juan Dela Cruz"))
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, ""))
	cell := s.Grid.Slot("PACKER", 0)
	assert.Equal(t, "", cell.Employee)
	assert.Equal(t, [7]domain.DayCell{}, cell.Days)
}

func TestCandidatesPartitionAddCrew(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")

	names := func(emps []domain.Employee) []string {
		out := make([]string, 0, len(emps))
		for _, e := range emps {
			out = append(out, e.FullName())
		}
		return out
	}
	assert.ElementsMatch(t, []string{"Juan Dela Cruz", "Maria Santos"}, names(s.CandidatesFor("PACKER")))
	assert.ElementsMatch(t, []string{"Pedro Reyes"}, names(s.CandidatesFor("SUPPORT / ABSENT")))
}

func TestComputeLockCountdown(t *testing.T) {
	today := time.Date(2025, 11, 5, 9, 30, 0, 0, time.UTC)
	lr, ok := ComputeLock("Juan Dela Cruz", "2025-11-01", domain.LockSevenDays, today)
	require.True(t, ok)
	assert.Equal(t, "2025-11-08", lr.LockUntil)
	assert.Equal(t, 3, lr.DaysRemaining)

	// expired window yields no record
	_, ok = ComputeLock("Juan Dela Cruz", "2025-10-01", domain.LockSevenDays, today)
	assert.False(t, ok)
	// lock disabled
	_, ok = ComputeLock("Juan Dela Cruz", "2025-11-04", domain.LockNone, today)
	assert.False(t, ok)
}

func TestLockedEmployeeKeepsCurrentSlot(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, "Juan Dela Cruz"))
	s.SetLocks([]domain.LockRecord{
		{EmployeeName: "Juan Dela Cruz", AssignmentDate: "2025-11-08", LockUntil: "2025-11-15", DaysRemaining: 5},
		{EmployeeName: "Maria Santos", AssignmentDate: "2025-11-08", LockUntil: "2025-11-15", DaysRemaining: 5},
	})

	// keeping the occupied cell is never blocked, lock or no lock
	el := s.Evaluate("Juan Dela Cruz", SlotRef{Position: "PACKER", Slot: 0})
	assert.False(t, el.Blocked)

	// moving inside the team trips the duplicate rule before the lock is seen
	el = s.Evaluate("Juan Dela Cruz", SlotRef{Position: "PACKER", Slot: 1})
	assert.True(t, el.Blocked)
	assert.Contains(t, el.Reason, "already assigned")

	// a locked employee holding no cell here is blocked by the lock itself
	el = s.Evaluate("Maria Santos", SlotRef{Position: "PACKER", Slot: 1})
	assert.True(t, el.Blocked)
	assert.Contains(t, el.Reason, "locked until 2025-11-15")
}

func TestBuildSaveNormalizesWhitespace(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-12")
	require.NoError(t, s.Assign(SlotRef{Position: "PACKER", Slot: 0}, "Maria Santos"))
	cell := s.Grid.Slot("PACKER", 0)
	cell.Days[1] = domain.DayCell{TimeIn: "  ", TimeOut: "17:00"}

	payload, err := s.BuildSave()
	require.NoError(t, err)
	assert.Equal(t, "2025-11-10", payload.WeekStartDate)
	assert.Equal(t, "2025-11-12", payload.DayOfSave)
	require.Len(t, payload.Assignments, 1)

	stamp := payload.Assignments[0].TimeData[1]
	assert.Nil(t, stamp.TimeIn)
	require.NotNil(t, stamp.TimeOut)
	assert.Equal(t, "17:00", *stamp.TimeOut)
}

func TestBuildSaveValidation(t *testing.T) {
	s := newTestSession(t, "", "2025-11-10")
	_, err := s.BuildSave()
	var ve ValidationError
	require.ErrorAs(t, err, &ve)

	s = newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	_, err = s.BuildSave()
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "no assignments")
}

func TestLoadStoredReportsDropped(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	dropped := s.LoadStored(StoredSheet{
		AssignmentData: map[string][]string{
			"PACKER":   {"Maria Santos"},
			"GHOST":    {"X"},
			"SUPPORT / ABSENT": {"Pedro Reyes"},
		},
		PreparedBy: "supervisor",
	})
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "supervisor", s.PreparedBy)
	// add-crew status is backfilled from the directory
	assert.True(t, s.Grid.Slot("SUPPORT / ABSENT", 0).IsAddCrew)
	assert.False(t, s.Grid.Slot("PACKER", 0).IsAddCrew)
}

func TestRebuildIndexToleratesMissingDays(t *testing.T) {
	s := newTestSession(t, "MICROTEAM - 01", "2025-11-10")
	s.Index.Add("MICROTEAM - 03", "2025-11-11", "Old Claim")

	s.RebuildIndex(map[string]domain.DayMembership{
		"2025-11-10": {Microteams: map[string][]string{"MICROTEAM - 02": {"Maria Santos"}}},
		// the other six days missing entirely
	})
	_, ok := s.Index.TeamFor("2025-11-11", "Old Claim")
	assert.False(t, ok)
	team, ok := s.Index.TeamFor("2025-11-10", "Maria Santos")
	require.True(t, ok)
	assert.Equal(t, "MICROTEAM - 02", team)
}
