package schedule

import (
	"sort"

	"crewline/internal/domain"
)

// SelectionIndex is the derived microteam -> date -> employee-name view of
// who is claimed where. It is rebuilt from the store on load/save and
// mutated optimistically on local edits; the resolver, not the index,
// enforces the one-team-per-date invariant.
type SelectionIndex struct {
	byTeam map[string]map[string]map[string]struct{}
}

func NewSelectionIndex() *SelectionIndex {
	return &SelectionIndex{byTeam: map[string]map[string]map[string]struct{}{}}
}

func (ix *SelectionIndex) Add(team, date, name string) {
	if team == "" || date == "" || name == "" {
		return
	}
	dates, ok := ix.byTeam[team]
	if !ok {
		dates = map[string]map[string]struct{}{}
		ix.byTeam[team] = dates
	}
	names, ok := dates[date]
	if !ok {
		names = map[string]struct{}{}
		dates[date] = names
	}
	names[name] = struct{}{}
}

func (ix *SelectionIndex) Remove(team, date, name string) {
	if dates, ok := ix.byTeam[team]; ok {
		delete(dates[date], name)
	}
}

// TeamFor returns the microteam claiming the employee on the date, if any.
func (ix *SelectionIndex) TeamFor(date, name string) (string, bool) {
	teams := make([]string, 0, len(ix.byTeam))
	for team := range ix.byTeam {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	for _, team := range teams {
		if _, ok := ix.byTeam[team][date][name]; ok {
			return team, true
		}
	}
	return "", false
}

// Names lists the employees claimed by a team on a date, sorted.
func (ix *SelectionIndex) Names(team, date string) []string {
	set := ix.byTeam[team][date]
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MergeDay folds one day's membership into the index. The merge only adds to
// sets keyed by date, so days may arrive in any order.
func (ix *SelectionIndex) MergeDay(date string, m domain.DayMembership) {
	for team, names := range m.Microteams {
		for _, name := range names {
			ix.Add(team, date, name)
		}
	}
	for team, names := range m.AddCrew {
		for _, name := range names {
			ix.Add(team, date, name)
		}
	}
}

// Reset clears the index ahead of a full rebuild.
func (ix *SelectionIndex) Reset() {
	ix.byTeam = map[string]map[string]map[string]struct{}{}
}
