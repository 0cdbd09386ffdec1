package engine

import (
	"testing"
	"time"

	"nasmon/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertSet(alerts ...models.Alert) map[uuid.UUID]models.Alert {
	out := make(map[uuid.UUID]models.Alert, len(alerts))
	for _, a := range alerts {
		out[a.UUID] = a
	}
	return out
}

func namedAlert(class, key string) models.Alert {
	return models.Alert{UUID: uuid.New(), Class: class, Key: key}
}

func policyByName(t *testing.T, name string) *Policy {
	t.Helper()
	for _, p := range NewPolicies() {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no policy %q", name)
	return nil
}

func TestImmediatePolicyDeltaEveryTick(t *testing.T) {
	p := policyByName(t, models.PolicyImmediately)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	a := namedAlert("VolumeUsage", "/vol1")

	gone, added := p.Delta(now, alertSet(a))
	assert.Empty(t, gone)
	require.Len(t, added, 1)

	// Next tick, unchanged set, new key: empty delta.
	gone, added = p.Delta(now.Add(time.Minute), alertSet(a))
	assert.Empty(t, gone)
	assert.Empty(t, added)

	gone, added = p.Delta(now.Add(2*time.Minute), alertSet())
	require.Len(t, gone, 1)
	assert.Empty(t, added)
}

func TestHourlyPolicyHoldsWithinBucket(t *testing.T) {
	p := policyByName(t, models.PolicyHourly)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	a := namedAlert("VolumeUsage", "/vol1")

	_, added := p.Delta(now, alertSet(a))
	require.Len(t, added, 1)

	// 59 minutes later, still the 10:xx bucket.
	gone, added := p.Delta(now.Add(59*time.Minute), alertSet())
	assert.Empty(t, gone)
	assert.Empty(t, added)

	// The next bucket reports the disappearance.
	gone, added = p.Delta(now.Add(61*time.Minute), alertSet())
	require.Len(t, gone, 1)
	assert.Empty(t, added)
}

func TestDailyPolicyBucketsByDate(t *testing.T) {
	p := policyByName(t, models.PolicyDaily)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	a := namedAlert("VolumeUsage", "/vol1")
	_, added := p.Delta(now, alertSet(a))
	require.Len(t, added, 1)

	gone, added := p.Delta(now.Add(13*time.Hour), alertSet(a))
	assert.Empty(t, gone)
	assert.Empty(t, added)

	gone, added = p.Delta(now.Add(24*time.Hour), alertSet())
	require.Len(t, gone, 1)
}

func TestNeverPolicyNeverRolls(t *testing.T) {
	p := policyByName(t, models.PolicyNever)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	p.Prime(now, alertSet())

	a := namedAlert("VolumeUsage", "/vol1")
	for i := 0; i < 100; i++ {
		gone, added := p.Delta(now.Add(time.Duration(i)*time.Hour), alertSet(a))
		assert.Empty(t, gone)
		assert.Empty(t, added)
	}
}

func TestPrimeSuppressesFirstDelta(t *testing.T) {
	p := policyByName(t, models.PolicyHourly)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	a := namedAlert("VolumeUsage", "/vol1")
	p.Prime(now, alertSet(a))

	gone, added := p.Delta(now.Add(time.Hour), alertSet(a))
	assert.Empty(t, gone)
	assert.Empty(t, added)
}

func TestFlapCoalescingDropsBothSides(t *testing.T) {
	old := namedAlert("VolumeUsage", "/vol1")
	fresh := namedAlert("VolumeUsage", "/vol1") // same condition, new uuid
	other := namedAlert("VolumeUsage", "/vol2")

	gone, added := coalesceFlaps(
		[]models.Alert{old},
		[]models.Alert{fresh, other},
	)
	assert.Empty(t, gone)
	require.Len(t, added, 1)
	assert.Equal(t, other.UUID, added[0].UUID)
}
