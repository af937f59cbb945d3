// Package recurrence evaluates RRULE schedules and compares instants
// by local calendar day.
package recurrence

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// NextOccurrence returns the next occurrence of ruleStr at or after
// from. When anchor is non-nil and the rule carries no DTSTART, the
// series is evaluated as if it started at anchor, which keeps the
// series stable no matter when resolution happens.
//
// A malformed rule never propagates an error: the second return is
// false and callers substitute their own fallback (usually the
// previous due instant, unchanged).
//
// Callers that want the occurrence strictly after a just-passed due
// instant must nudge from past it themselves; this function treats
// from as inclusive.
func NextOccurrence(ruleStr string, from time.Time, anchor *time.Time) (time.Time, bool) {
	ruleStr = strings.TrimSpace(ruleStr)
	if ruleStr == "" {
		return time.Time{}, false
	}

	if strings.Contains(ruleStr, "\n") {
		set, err := rrule.StrToRRuleSet(ruleStr)
		if err != nil {
			return time.Time{}, false
		}
		if anchor != nil && set.GetDTStart().IsZero() {
			set.DTStart(*anchor)
		}
		next := set.After(from, true)
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	}

	r, err := rrule.StrToRRule(strings.TrimPrefix(ruleStr, "RRULE:"))
	if err != nil {
		return time.Time{}, false
	}
	if anchor != nil && !strings.Contains(strings.ToUpper(ruleStr), "DTSTART") {
		r.DTStart(*anchor)
	}
	next := r.After(from, true)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// LocalDate renders the instant's civil date ("YYYY-MM-DD") as
// observed in the named IANA zone. Unknown zone names fall back to
// UTC rather than failing.
func LocalDate(t time.Time, timezone string) string {
	return t.In(loadZone(timezone)).Format("2006-01-02")
}

// SameLocalDay reports whether a and b fall on the same civil date in
// the named zone. Zone-aware conversion keeps this correct across DST
// transitions and the date line.
func SameLocalDay(a, b time.Time, timezone string) bool {
	return LocalDate(a, timezone) == LocalDate(b, timezone)
}

func loadZone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
