// Package timespec parses the time flags accepted by the warren CLI.
//
// A specification is either a duration ("90m", "2h30m", "7d") or an RFC3339
// timestamp ("2026-03-01T09:00:00Z"). Durations are resolved against a
// caller-supplied now: backwards for Since, forwards for Deadline.
package timespec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Since resolves a lookback specification. "1h" means one hour before now.
func Since(spec string, now time.Time) (time.Time, error) {
	t, d, err := parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	if d != 0 {
		return now.Add(-d), nil
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("--since %s is in the future", spec)
	}
	return t, nil
}

// Deadline resolves a forward specification. "48h" means 48 hours after now.
// The result must be after now.
func Deadline(spec string, now time.Time) (time.Time, error) {
	t, d, err := parse(spec)
	if err != nil {
		return time.Time{}, err
	}
	if d != 0 {
		return now.Add(d), nil
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("deadline %s is not in the future", spec)
	}
	return t, nil
}

// parse returns either an absolute time or a positive duration.
func parse(spec string) (time.Time, time.Duration, error) {
	if spec == "" {
		return time.Time{}, 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, 0, nil
	}

	d, err := parseDuration(spec)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid time specification: %s (use a duration like '1h30m' or '7d', or RFC3339 like '2026-03-01T09:00:00Z')", spec)
	}
	if d <= 0 {
		return time.Time{}, 0, fmt.Errorf("duration must be positive: %s", spec)
	}
	return time.Time{}, d, nil
}

// parseDuration extends time.ParseDuration with a whole-day "d" unit.
func parseDuration(spec string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(spec, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(spec)
}
