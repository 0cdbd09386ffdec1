package engine

import (
	"time"

	"nasmon/internal/models"

	"github.com/google/uuid"
)

// unset is the initial bucketing key, distinct from every real key
// (including NEVER's nil) so an unprimed policy emits on first delta.
type unsetKey struct{}

// Policy buckets delivery in time. Each policy remembers the alert set
// as of the last bucket change and hands out (gone, new) deltas when the
// bucket rolls over.
type Policy struct {
	Name string
	key  func(now time.Time) interface{}

	lastKey    interface{}
	lastAlerts map[uuid.UUID]models.Alert
}

func newPolicy(name string, key func(now time.Time) interface{}) *Policy {
	return &Policy{
		Name:       name,
		key:        key,
		lastKey:    unsetKey{},
		lastAlerts: make(map[uuid.UUID]models.Alert),
	}
}

// NewPolicies returns the four fixed policies in delivery-frequency order.
func NewPolicies() []*Policy {
	return []*Policy{
		newPolicy(models.PolicyImmediately, func(now time.Time) interface{} {
			return now
		}),
		newPolicy(models.PolicyHourly, func(now time.Time) interface{} {
			return now.Format("2006-01-02 15")
		}),
		newPolicy(models.PolicyDaily, func(now time.Time) interface{} {
			return now.Format("2006-01-02")
		}),
		newPolicy(models.PolicyNever, func(now time.Time) interface{} {
			return nil
		}),
	}
}

// Prime installs a snapshot without producing deltas. Bootstrap primes
// every policy with the loaded set so the first tick announces nothing.
func (p *Policy) Prime(now time.Time, alerts map[uuid.UUID]models.Alert) {
	p.lastKey = p.key(now)
	p.lastAlerts = copyAlerts(alerts)
}

// Delta returns (gone, new) against the snapshot if the bucket rolled
// over, and refreshes the snapshot. Inside one bucket it returns nothing.
func (p *Policy) Delta(now time.Time, current map[uuid.UUID]models.Alert) (gone, added []models.Alert) {
	key := p.key(now)
	if key == p.lastKey {
		return nil, nil
	}

	for id, alert := range p.lastAlerts {
		if _, ok := current[id]; !ok {
			gone = append(gone, alert)
		}
	}
	for id, alert := range current {
		if _, ok := p.lastAlerts[id]; !ok {
			added = append(added, alert)
		}
	}

	p.lastKey = key
	p.lastAlerts = copyAlerts(current)

	return coalesceFlaps(gone, added)
}

// coalesceFlaps drops pairs with the same (class, key) from both sides:
// an alert that vanished and reappeared inside one bucket never fired.
func coalesceFlaps(gone, added []models.Alert) ([]models.Alert, []models.Alert) {
	goneKeys := make(map[string]int)
	for _, a := range gone {
		goneKeys[a.FlapKey()]++
	}
	addedKeys := make(map[string]int)
	for _, a := range added {
		addedKeys[a.FlapKey()]++
	}

	var keptGone []models.Alert
	for _, a := range gone {
		if addedKeys[a.FlapKey()] > 0 {
			continue
		}
		keptGone = append(keptGone, a)
	}
	var keptAdded []models.Alert
	for _, a := range added {
		if goneKeys[a.FlapKey()] > 0 {
			continue
		}
		keptAdded = append(keptAdded, a)
	}

	return keptGone, keptAdded
}

func copyAlerts(in map[uuid.UUID]models.Alert) map[uuid.UUID]models.Alert {
	out := make(map[uuid.UUID]models.Alert, len(in))
	for id, alert := range in {
		out[id] = alert
	}
	return out
}
