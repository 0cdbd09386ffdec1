package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule decides whether a source is due. The engine asks once per
// tick; it does not enforce any particular cadence itself.
type Schedule interface {
	ShouldRun(now, lastRun time.Time) bool
}

// IntervalSchedule runs a source when at least Every has passed since
// its last run. A source that has never run is always due.
type IntervalSchedule struct {
	Every time.Duration
}

func EveryMinutes(n int) IntervalSchedule {
	return IntervalSchedule{Every: time.Duration(n) * time.Minute}
}

func (s IntervalSchedule) ShouldRun(now, lastRun time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun) >= s.Every
}

// CrontabSchedule runs a source when the next cron activation after its
// last run has been reached. Uses standard 5-field cron expressions.
type CrontabSchedule struct {
	spec cron.Schedule
}

func NewCrontabSchedule(expr string) (CrontabSchedule, error) {
	spec, err := cron.ParseStandard(expr)
	if err != nil {
		return CrontabSchedule{}, err
	}
	return CrontabSchedule{spec: spec}, nil
}

func MustCrontabSchedule(expr string) CrontabSchedule {
	s, err := NewCrontabSchedule(expr)
	if err != nil {
		panic(err)
	}
	return s
}

func (s CrontabSchedule) ShouldRun(now, lastRun time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return !s.spec.Next(lastRun).After(now)
}
