package util

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Five-field format (minute, hour, day, month, weekday) plus @monthly style
// descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Every scheduler tick re-evaluates the same handful of expressions.
var schedules sync.Map // string -> cron.Schedule

func parseSchedule(expr string) (cron.Schedule, error) {
	if s, ok := schedules.Load(expr); ok {
		return s.(cron.Schedule), nil
	}
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	schedules.Store(expr, s)
	return s, nil
}

// NextRun returns the first occurrence of expr strictly after from, in UTC.
func NextRun(expr string, from time.Time) (time.Time, error) {
	s, err := parseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(from.UTC()), nil
}

// NextRunUnix returns the next occurrence of expr after from as unix
// seconds, or 0 when expr is empty (schedule disabled).
func NextRunUnix(expr string, from time.Time) (int64, error) {
	if expr == "" {
		return 0, nil
	}
	next, err := NextRun(expr, from)
	if err != nil {
		return 0, err
	}
	return next.Unix(), nil
}
