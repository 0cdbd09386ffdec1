package engine

import (
	"context"
	"strings"
	"time"

	"nasmon/internal/classes"
	"nasmon/internal/events"
	"nasmon/internal/models"
	"nasmon/internal/registry"
	"nasmon/internal/ticket"

	"github.com/sirupsen/logrus"
)

// ticketTimeout bounds one support-endpoint call from inside a dispatch
// pass so a hung endpoint cannot stall the engine worker.
const ticketTimeout = 45 * time.Second

type policyDelta struct {
	gone  []models.Alert
	added []models.Alert
}

// dispatch is the fan-out half of a tick. While the gate is closed (not
// READY, BACKUP role, or failover in progress) the pass is deferred: the
// first dispatch after the gate reopens picks it up.
func (e *Engine) dispatch() {
	if !e.gateOpen() {
		e.sendOnReady = true
		return
	}
	e.sendOnReady = false
	e.dispatchLocked()
}

func (e *Engine) dispatchLocked() {
	now := e.clk.Now()

	deltas := make(map[string]policyDelta, len(e.policies))
	for _, p := range e.policies {
		gone, added := p.Delta(now, e.live)
		deltas[p.Name] = policyDelta{gone: gone, added: added}
	}

	e.sendToServices(deltas)

	immediate := deltas[models.PolicyImmediately]
	e.emitEvents(immediate)
	e.sendMail(immediate.added)
	e.openProactiveTicket(immediate)
}

// sendToServices delivers per-policy digests to every enabled channel.
// A channel only hears about a delta when its bucket rolled over and the
// filtered gone/new sets are non-empty.
func (e *Engine) sendToServices(deltas map[string]policyDelta) {
	for _, p := range e.policies {
		if p.Name == models.PolicyNever {
			continue
		}
		d := deltas[p.Name]
		if len(d.gone)+len(d.added) == 0 {
			continue
		}

		for _, svc := range e.svcMgr.Enabled() {
			gone := e.filterDelta(d.gone, svc.Config.Level, p.Name)
			added := e.filterDelta(d.added, svc.Config.Level, p.Name)
			if len(gone)+len(added) == 0 {
				continue
			}

			alerts := e.currentForService(svc.Config.Level)
			if err := svc.Send(alerts, gone, added); err != nil {
				e.log.WithFields(logrus.Fields{"service": svc.Config.Name, "type": svc.Config.Type}).
					Errorf("Alert service delivery failed: %v", err)
				e.metrics.IncDispatchFailures(svc.Config.Name)
			}
		}
	}
}

// filterDelta keeps the delta entries a channel should hear about:
// product match, effective policy exactly policyName, level at or above
// the channel threshold, not dismissed.
func (e *Engine) filterDelta(alerts []models.Alert, threshold models.Level, policyName string) []models.AlertView {
	var out []models.AlertView
	for _, alert := range alerts {
		class, ok := e.classes.Get(alert.Class)
		if !ok || alert.Dismissed {
			continue
		}
		if !models.HasProduct(class.Products, e.product) {
			continue
		}
		if e.effectivePolicy(class) != policyName {
			continue
		}
		if e.effectiveLevel(class) < threshold {
			continue
		}
		out = append(out, e.view(alert))
	}
	return out
}

// currentForService is the full live set as one channel sees it.
func (e *Engine) currentForService(threshold models.Level) []models.AlertView {
	var out []models.AlertView
	for _, alert := range e.live {
		class, ok := e.classes.Get(alert.Class)
		if !ok || alert.Dismissed {
			continue
		}
		if !models.HasProduct(class.Products, e.product) {
			continue
		}
		if e.effectivePolicy(class) == models.PolicyNever {
			continue
		}
		if e.effectiveLevel(class) < threshold {
			continue
		}
		out = append(out, e.view(alert))
	}
	return out
}

// emitEvents publishes the IMMEDIATELY delta on the event bus.
func (e *Engine) emitEvents(d policyDelta) {
	for _, alert := range d.gone {
		class, ok := e.classes.Get(alert.Class)
		if !ok || !e.classShown(class) {
			continue
		}
		e.publish(events.Event{Event: events.EventRemoved, ID: alert.UUID.String()})
	}
	for _, alert := range d.added {
		class, ok := e.classes.Get(alert.Class)
		if !ok || !e.classShown(class) || alert.Dismissed {
			continue
		}
		view := e.view(alert)
		e.publish(events.Event{Event: events.EventAdded, ID: view.ID, Fields: &view})
	}
}

func (e *Engine) publish(ev events.Event) {
	if err := e.bus.Publish(ev); err != nil {
		e.log.Errorf("Failed to publish %s event for %s: %v", ev.Event, ev.ID, err)
		return
	}
	e.metrics.IncEventsEmitted(ev.Event)
}

// sendMail delivers the per-alert mail payloads attached to newly fired
// immediate alerts.
func (e *Engine) sendMail(added []models.Alert) {
	for _, alert := range added {
		if alert.Mail == nil || alert.Dismissed {
			continue
		}
		if err := e.mailer.Send(*alert.Mail); err != nil {
			e.log.WithFields(logrus.Fields{"uuid": alert.UUID}).
				Errorf("Failed to send alert mail: %v", err)
		}
	}
}

// openProactiveTicket files one automatic support case per dispatch pass
// covering cleared and new proactive-support alerts. A failed filing
// raises an AutomaticAlertFailed one-shot instead of being lost.
func (e *Engine) openProactiveTicket(d policyDelta) {
	if e.product != models.ProductEnterprise {
		return
	}

	var cleared, fired []models.Alert
	for _, alert := range d.gone {
		if class, ok := e.classes.Get(alert.Class); ok &&
			class.ProactiveSupport && class.ProactiveSupportNotifyGone && e.effectiveProactive(class) {
			cleared = append(cleared, alert)
		}
	}
	for _, alert := range d.added {
		if alert.Dismissed {
			continue
		}
		if class, ok := e.classes.Get(alert.Class); ok &&
			class.ProactiveSupport && e.effectiveProactive(class) {
			fired = append(fired, alert)
		}
	}
	if len(cleared)+len(fired) == 0 {
		return
	}

	var body strings.Builder
	if len(cleared) > 0 {
		body.WriteString("Cleared:\n")
		for _, alert := range cleared {
			body.WriteString(ticket.HTMLToText(alert.Text))
			body.WriteByte('\n')
		}
	}
	if len(fired) > 0 {
		if body.Len() > 0 {
			body.WriteByte('\n')
		}
		body.WriteString("New:\n")
		for _, alert := range fired {
			body.WriteString(ticket.HTMLToText(alert.Text))
			body.WriteByte('\n')
		}
	}
	if e.support.ContactName != "" || e.support.ContactEmail != "" || e.support.ContactPhone != "" {
		body.WriteString("\nOperator contact:\n")
		for _, line := range []string{e.support.ContactName, e.support.ContactEmail, e.support.ContactPhone} {
			if line != "" {
				body.WriteString(line)
				body.WriteByte('\n')
			}
		}
	}

	t := ticket.New(e.support.Serial, body.String())
	if e.support.ContactName != "" {
		t.ContactName = e.support.ContactName
	}
	if e.support.ContactEmail != "" {
		t.ContactEmail = e.support.ContactEmail
	}

	ctx, cancel := context.WithTimeout(context.Background(), ticketTimeout)
	defer cancel()

	if err := e.tickets.Open(ctx, t); err != nil {
		e.log.Errorf("Failed to open automatic support ticket: %v", err)
		e.metrics.IncTicketsOpened("failed")

		if class, ok := e.classes.Get(classes.AutomaticAlertFailed); ok {
			e.raiseOneshot(class, map[string]interface{}{
				"message": t.Title,
				"error":   err.Error(),
			})
		}
		return
	}
	e.metrics.IncTicketsOpened("opened")
}

// raiseOneshot creates a one-shot alert from inside the engine itself
// and schedules a dispatch pass to announce it.
func (e *Engine) raiseOneshot(class *registry.AlertClass, args map[string]interface{}) {
	if err := e.oneshotCreateLocked(class, args); err != nil {
		e.log.WithFields(logrus.Fields{"klass": class.Name}).
			Errorf("Failed to raise internal one-shot alert: %v", err)
		return
	}
	e.jobs.Enqueue(e.dispatch)
}
