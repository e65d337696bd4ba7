package schedule

import "strings"

// FormatClock renders a stored stamp for the grid: seconds truncated, a nil
// or blank value collapses to the empty string, never the string "null".
func FormatClock(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return ""
	}
	if len(v) == 8 && v[2] == ':' && v[5] == ':' {
		return v[:5]
	}
	return v
}

// NormalizeTime prepares a grid cell value for transmission: a whitespace-only
// value becomes an explicit null, not an omitted key.
func NormalizeTime(s string) *string {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return &v
}
