package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSchedule(t *testing.T) {
	s := EveryMinutes(5)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	assert.True(t, s.ShouldRun(now, time.Time{}), "never ran: always due")
	assert.False(t, s.ShouldRun(now, now.Add(-4*time.Minute)))
	assert.True(t, s.ShouldRun(now, now.Add(-5*time.Minute)))
	assert.True(t, s.ShouldRun(now, now.Add(-time.Hour)))
}

func TestCrontabSchedule(t *testing.T) {
	s, err := NewCrontabSchedule("0 3 * * *") // daily at 03:00
	require.NoError(t, err)

	lastRun := time.Date(2026, 8, 29, 3, 0, 0, 0, time.UTC)

	assert.False(t, s.ShouldRun(lastRun.Add(time.Hour), lastRun))
	assert.False(t, s.ShouldRun(lastRun.Add(23*time.Hour), lastRun))
	assert.True(t, s.ShouldRun(lastRun.Add(24*time.Hour), lastRun))
	assert.True(t, s.ShouldRun(time.Time{}.Add(time.Hour), time.Time{}), "never ran: always due")
}

func TestCrontabScheduleRejectsBadExpr(t *testing.T) {
	_, err := NewCrontabSchedule("not a cron line")
	assert.Error(t, err)

	assert.Panics(t, func() { MustCrontabSchedule("* * *") })
}
