package scheduler

import "time"

// The schedule parser recognizes a small fixed table of cron patterns. It is
// an explicit simplification, not a full cron evaluator: anything outside the
// table degrades to "one hour from now" rather than raising an error.
const (
	scheduleHourly       = "0 * * * *"
	scheduleDailyMidnight = "0 0 * * *"
	scheduleWeeklyMonday = "0 0 * * 1"
)

func (s *Scheduler) nextRunFrom(now time.Time, schedule string) time.Time {
	switch schedule {
	case scheduleHourly:
		return now.Truncate(time.Hour).Add(time.Hour)
	case scheduleDailyMidnight:
		return nextMidnight(now)
	case scheduleWeeklyMonday:
		next := nextMidnight(now)
		for next.Weekday() != time.Monday {
			next = next.AddDate(0, 0, 1)
		}
		return next
	default:
		if schedule != "" {
			s.logger.Warnf("unrecognized schedule %q: falling back to +1h", schedule)
		}
		return now.Add(time.Hour)
	}
}

func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
