package crewlinesdk

import (
	"context"
	"encoding/base64"
	"sync"

	"crewline/internal/config"
	"crewline/internal/domain"
	"crewline/internal/pdfgen"
	"crewline/internal/schedule"
)

// OpenSession builds a ready working copy for the week containing date:
// directory and attendance loaded, lock records applied, any stored sheet
// merged, selection index rebuilt. The dropped count reports stored cells the
// current position catalog could not place.
func (c *Client) OpenSession(ctx context.Context, cfg *config.Config, microteam, date string) (*schedule.Session, int, error) {
	s, err := schedule.NewSession(cfg.Positions, microteam, date)
	if err != nil {
		return nil, 0, err
	}

	emps, err := c.Employees(ctx, s.Days[0], s.Days[6])
	if err != nil {
		return nil, 0, err
	}
	s.SetEmployees(emps)

	if err := c.refreshLocks(ctx, s); err != nil {
		return nil, 0, err
	}

	dropped := 0
	stored, err := c.ByMicroteam(ctx, s.WeekStart, microteam)
	switch {
	case err == nil:
		dropped = s.LoadStored(stored.StoredSheet)
	case IsNotFound(err):
		// nothing saved yet; the zero-filled grid stands
	default:
		// grid-load trouble is warned about, not fatal: the user can still
		// work from an empty grid and retry the load on the next refresh
		c.log().WithError(err).Warn("could not load stored grid, starting empty")
	}

	s.RebuildIndex(c.weekMembership(ctx, s.WeekStart, s.Days))
	return s, dropped, nil
}

// SaveSession validates, attaches the printable rendition when possible, and
// stores the grid. The PDF is best effort: a render failure never blocks the
// save. On success the lock records and selection index are refreshed.
func (c *Client) SaveSession(ctx context.Context, cfg *config.Config, s *schedule.Session) (StoreResult, error) {
	payload, err := s.BuildSave()
	if err != nil {
		return StoreResult{}, err
	}

	sheet := domain.WeeklySheet{
		WeekStart:  payload.WeekStartDate,
		Microteam:  s.Microteam,
		PreparedBy: payload.PreparedBy,
		CheckedBy:  payload.CheckedBy,
		DayOfSave:  payload.DayOfSave,
		Records:    payload.Assignments,
		LeaveRows:  payload.LeaveRows,
	}
	if pdf, err := pdfgen.Render(sheet, cfg); err == nil {
		payload.PDFBase64 = base64.StdEncoding.EncodeToString(pdf)
	}

	res, err := c.Store(ctx, s.Microteam, payload)
	if err != nil {
		return StoreResult{}, err
	}

	// keep the session consistent with what the server now knows
	_ = c.refreshLocks(ctx, s)
	s.RebuildIndex(c.weekMembership(ctx, s.WeekStart, s.Days))
	return res, nil
}

func (c *Client) refreshLocks(ctx context.Context, s *schedule.Session) error {
	settings, err := c.Settings(ctx)
	if err != nil {
		return err
	}
	period, err := domain.LockPeriodFromFlags(settings.SevenDays, settings.FourteenDays)
	if err != nil {
		return err
	}
	if !period.Active() {
		s.SetLocks(nil)
		return nil
	}
	records, err := c.LockedEmployees(ctx, period.Days())
	if err != nil {
		return err
	}
	s.SetLocks(records)
	return nil
}

// weekMembership gathers the seven per-date memberships for the index. It
// prefers the single range query and falls back to a per-date fan-out where
// each day's failure is isolated: a missing day just leaves the index
// without that day's contribution.
func (c *Client) weekMembership(ctx context.Context, weekStart string, days [7]string) map[string]domain.DayMembership {
	if wm, err := c.ForWeek(ctx, weekStart); err == nil {
		out := make(map[string]domain.DayMembership, len(wm.Days))
		for date, m := range wm.Days {
			out[date] = domain.DayMembership{Microteams: m.Microteams, AddCrew: m.AddCrew}
		}
		return out
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]domain.DayMembership, 7)
	)
	for _, day := range days {
		wg.Add(1)
		go func(day string) {
			defer wg.Done()
			m, err := c.ForDate(ctx, day)
			if err != nil {
				c.log().WithError(err).WithField("date", day).Warn("skipping day in membership rebuild")
				return
			}
			mu.Lock()
			out[day] = domain.DayMembership{Microteams: m.Microteams, AddCrew: m.AddCrew}
			mu.Unlock()
		}(day)
	}
	wg.Wait()
	return out
}
