package engine

import (
	"testing"
	"time"

	"nasmon/internal/clock"

	"github.com/stretchr/testify/assert"
)

func TestLockManagerBlockUnblock(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	m := NewLockManager(clk)

	assert.False(t, m.Blocked("smart"))

	id1 := m.Block("smart", time.Hour)
	id2 := m.Block("smart", time.Hour)
	assert.NotEqual(t, id1, id2)
	assert.True(t, m.Blocked("smart"))

	// Both locks must be gone before the source runs again.
	assert.True(t, m.Unblock(id1))
	assert.True(t, m.Blocked("smart"))
	assert.True(t, m.Unblock(id2))
	assert.False(t, m.Blocked("smart"))

	assert.False(t, m.Unblock(id1), "double unblock")
}

func TestLockManagerSweepExpired(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	m := NewLockManager(clk)

	m.Block("smart", 10*time.Minute)
	m.Block("volume_usage", time.Hour)

	clk.Advance(30 * time.Minute)
	m.Sweep()

	assert.False(t, m.Blocked("smart"))
	assert.True(t, m.Blocked("volume_usage"))
	assert.Equal(t, []string{"volume_usage"}, m.BlockedSources())
}
