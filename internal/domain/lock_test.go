package domain

import "testing"

func TestLockPeriodFlags(t *testing.T) {
	cases := []struct {
		seven, fourteen bool
		want            LockPeriod
	}{
		{false, false, LockNone},
		{true, false, LockSevenDays},
		{false, true, LockFourteenDays},
	}
	for _, c := range cases {
		got, err := LockPeriodFromFlags(c.seven, c.fourteen)
		if err != nil {
			t.Fatalf("flags (%v,%v): %v", c.seven, c.fourteen, err)
		}
		if got != c.want {
			t.Fatalf("flags (%v,%v): got %d want %d", c.seven, c.fourteen, got, c.want)
		}
		s, f := got.Flags()
		if s != c.seven || f != c.fourteen {
			t.Fatalf("round trip for %d: got (%v,%v)", got, s, f)
		}
	}
}

func TestLockPeriodBothFlagsRejected(t *testing.T) {
	if _, err := LockPeriodFromFlags(true, true); err == nil {
		t.Fatal("expected error for both flags set")
	}
}

func TestLockPeriodFromDays(t *testing.T) {
	for _, d := range []int{0, 7, 14} {
		p, err := LockPeriodFromDays(d)
		if err != nil || p.Days() != d {
			t.Fatalf("days %d: %v", d, err)
		}
	}
	if _, err := LockPeriodFromDays(3); err == nil {
		t.Fatal("expected error for 3-day window")
	}
	if LockNone.Active() {
		t.Fatal("LockNone must not be active")
	}
	if !LockSevenDays.Active() {
		t.Fatal("LockSevenDays must be active")
	}
}

func TestEmployeeFullName(t *testing.T) {
	e := Employee{FirstName: "Juan", LastName: "Dela Cruz", WorkStatus: WorkStatusAddCrew}
	if e.FullName() != "Juan Dela Cruz" {
		t.Fatalf("full name: %q", e.FullName())
	}
	if !e.IsAddCrew() {
		t.Fatal("ADD CREW status must report add crew")
	}
}
