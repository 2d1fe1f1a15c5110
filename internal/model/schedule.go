package model

import "time"

// DefaultIntervalMinutes is the polling interval used when no schedule
// state has been stored yet.
const DefaultIntervalMinutes = 60

// ScheduleState records polling-run metadata. Only the scheduler
// mutates it, once per completed tick.
type ScheduleState struct {
	LastRun         time.Time `json:"last_run"`
	NextRun         time.Time `json:"next_run"`
	RunCount        int       `json:"run_count"`
	IntervalMinutes int       `json:"interval_minutes"`
	Enabled         bool      `json:"enabled"`
}

// DefaultSchedule returns the initial schedule state.
func DefaultSchedule() ScheduleState {
	return ScheduleState{
		IntervalMinutes: DefaultIntervalMinutes,
		Enabled:         false,
	}
}

// Interval returns the polling interval as a duration, falling back to
// the default when the stored value is unusable.
func (s ScheduleState) Interval() time.Duration {
	m := s.IntervalMinutes
	if m <= 0 {
		m = DefaultIntervalMinutes
	}
	return time.Duration(m) * time.Minute
}
