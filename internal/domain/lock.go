package domain

import "fmt"

// LockPeriod is the configured assignment lock window. It is a tagged choice
// rather than a pair of booleans so that the "both enabled" state cannot be
// represented; the boolean pair exists only on the wire.
type LockPeriod int

const (
	LockNone         LockPeriod = 0
	LockSevenDays    LockPeriod = 7
	LockFourteenDays LockPeriod = 14
)

func (p LockPeriod) Days() int { return int(p) }

// Active reports whether the lock rule applies at all. LockNone is an
// explicit "no lock" state, not a fallback.
func (p LockPeriod) Active() bool { return p != LockNone }

// Flags returns the wire representation (lock_period_7_days, lock_period_14_days).
func (p LockPeriod) Flags() (seven, fourteen bool) {
	return p == LockSevenDays, p == LockFourteenDays
}

// LockPeriodFromFlags converts the mutually exclusive boolean pair used by
// the settings endpoint. Both true is a client error.
func LockPeriodFromFlags(seven, fourteen bool) (LockPeriod, error) {
	switch {
	case seven && fourteen:
		return LockNone, fmt.Errorf("invalid settings: lock_period_7_days and lock_period_14_days are mutually exclusive")
	case seven:
		return LockSevenDays, nil
	case fourteen:
		return LockFourteenDays, nil
	default:
		return LockNone, nil
	}
}

func LockPeriodFromDays(d int) (LockPeriod, error) {
	switch d {
	case 0, 7, 14:
		return LockPeriod(d), nil
	default:
		return LockNone, fmt.Errorf("invalid lock period %d: must be 0, 7 or 14", d)
	}
}
