package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"nasmon/internal/classes"
	"nasmon/internal/events"
	"nasmon/internal/models"
	"nasmon/internal/registry"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// List returns the visible alert set sorted by descending level, then
// title, then first-seen time.
func (e *Engine) List() []models.AlertView {
	var out []models.AlertView
	e.jobs.EnqueueWait(func() {
		for _, alert := range e.live {
			class, ok := e.classes.Get(alert.Class)
			if !ok || !e.classShown(class) {
				continue
			}
			out = append(out, e.view(alert))
		}
	})

	sort.Slice(out, func(i, j int) bool {
		li, _ := models.ParseLevel(out[i].Level)
		lj, _ := models.ParseLevel(out[j].Level)
		if li != lj {
			return li > lj
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Datetime.Before(out[j].Datetime)
	})
	return out
}

// Dismiss hides one alert. Group classes decide the fate of the whole
// group; one-shot classes without automatic deletion are deleted
// outright; everything else gets the dismissed flag.
func (e *Engine) Dismiss(id string) error {
	target, err := uuid.Parse(id)
	if err != nil {
		return models.NewValidationError("id", "not a valid alert id")
	}

	var opErr error
	e.jobs.EnqueueWait(func() {
		alert, ok := e.live[target]
		if !ok {
			opErr = fmt.Errorf("unknown alert %s", id)
			return
		}
		class, ok := e.classes.Get(alert.Class)
		if !ok {
			opErr = fmt.Errorf("alert %s has unknown class %q", id, alert.Class)
			return
		}

		switch {
		case class.Dismiss != nil:
			e.dismissGroup(class, alert)
			e.flushLocked()
		case class.IsOneShot() && !class.OneShot.DeletedAutomatically:
			e.remove(alert)
			e.flushLocked()
			if e.classShown(class) {
				e.publish(events.Event{Event: events.EventRemoved, ID: alert.UUID.String()})
			}
		default:
			alert.Dismissed = true
			e.live[alert.UUID] = alert
			if e.classShown(class) {
				view := e.view(alert)
				e.publish(events.Event{Event: events.EventChanged, ID: view.ID, Fields: &view})
			}
		}

		e.log.WithFields(logrus.Fields{"uuid": id, "klass": alert.Class}).Info("Alert dismissed")
	})
	return opErr
}

// dismissGroup lets the class's dismiss hook pick which related alerts
// survive, then reconciles the live set with its verdict.
func (e *Engine) dismissGroup(class *registry.AlertClass, target models.Alert) {
	var related []models.Alert
	for _, alert := range e.live {
		if alert.Class == class.Name {
			related = append(related, alert)
		}
	}

	kept := class.Dismiss(related, target)
	keptIDs := make(map[uuid.UUID]bool, len(kept))
	for _, alert := range kept {
		keptIDs[alert.UUID] = true
	}

	for _, alert := range related {
		if keptIDs[alert.UUID] {
			continue
		}
		e.remove(alert)
		if e.classShown(class) {
			e.publish(events.Event{Event: events.EventRemoved, ID: alert.UUID.String()})
		}
	}
	for _, alert := range kept {
		e.live[alert.UUID] = alert
		e.identity[alert.Identity()] = alert.UUID
		if e.classShown(class) {
			view := e.view(alert)
			e.publish(events.Event{Event: events.EventChanged, ID: view.ID, Fields: &view})
		}
	}
}

// Restore clears the dismissed flag.
func (e *Engine) Restore(id string) error {
	target, err := uuid.Parse(id)
	if err != nil {
		return models.NewValidationError("id", "not a valid alert id")
	}

	var opErr error
	e.jobs.EnqueueWait(func() {
		alert, ok := e.live[target]
		if !ok {
			opErr = fmt.Errorf("unknown alert %s", id)
			return
		}
		alert.Dismissed = false
		e.live[alert.UUID] = alert

		if class, ok := e.classes.Get(alert.Class); ok && e.classShown(class) {
			view := e.view(alert)
			e.publish(events.Event{Event: events.EventChanged, ID: view.ID, Fields: &view})
		}
	})
	return opErr
}

func (e *Engine) remove(alert models.Alert) {
	delete(e.live, alert.UUID)
	delete(e.identity, alert.Identity())
}

// RunSource runs one source synchronously outside the tick cycle and
// returns its raw alerts without touching the live set. Serves both the
// admin trigger and the peer RPC endpoint.
func (e *Engine) RunSource(ctx context.Context, name string) ([]models.Alert, error) {
	source, ok := e.sources.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown alert source %q", name)
	}

	raw, err := e.checkSource(ctx, source)
	if err != nil {
		return nil, err
	}
	return e.normalize(raw, source.Name, e.coord.ThisNode(), e.clk.Now()), nil
}

// BlockSource suspends one source's scheduling and returns the lock id.
func (e *Engine) BlockSource(name string, ttl time.Duration) (int64, error) {
	if _, ok := e.sources.Get(name); !ok {
		return 0, fmt.Errorf("unknown alert source %q", name)
	}
	id := e.locks.Block(name, ttl)
	e.log.WithFields(logrus.Fields{"source": name, "lock": id, "ttl": ttl}).
		Info("Alert source blocked")
	return id, nil
}

// UnblockSource releases one lock by id.
func (e *Engine) UnblockSource(id int64) error {
	if !e.locks.Unblock(id) {
		return fmt.Errorf("unknown source lock %d", id)
	}
	return nil
}

func (e *Engine) BlockedSources() []string {
	return e.locks.BlockedSources()
}

// FlushAlerts rewrites the store now instead of waiting for the hourly
// flush.
func (e *Engine) FlushAlerts() {
	e.jobs.EnqueueWait(e.flushLocked)
}

// SourcesStats reports per-source run timing.
func (e *Engine) SourcesStats() map[string]SourceStatView {
	return e.stats.Snapshot()
}

// OneshotCreate fires a one-shot alert through its class create hook.
// Validation errors surface synchronously to the caller.
func (e *Engine) OneshotCreate(className string, args map[string]interface{}) error {
	class, err := e.oneshotClass(className)
	if err != nil {
		return err
	}

	var opErr error
	e.jobs.EnqueueWait(func() {
		opErr = e.oneshotCreateLocked(class, args)
	})
	if opErr != nil {
		return opErr
	}

	e.jobs.Enqueue(e.dispatch)
	return nil
}

func (e *Engine) oneshotCreateLocked(class *registry.AlertClass, args map[string]interface{}) error {
	alert, err := class.OneShot.Create(args)
	if err != nil {
		return err
	}
	if alert == nil {
		return nil
	}

	now := e.clk.Now()
	alert.Class = class.Name
	alert.Source = ""
	alert.Node = e.coord.ThisNode()
	if alert.Args == nil {
		alert.Args = args
	}
	if alert.Key == "" {
		alert.Key = models.DefaultKey(alert.Args)
	}
	if alert.Text == "" {
		alert.Text = class.Format(alert.Args)
	}
	if alert.Datetime.IsZero() {
		alert.Datetime = now
	}
	alert.Datetime = alert.Datetime.UTC()

	merged := e.mergeAlert(*alert, now)
	e.metrics.SetActiveAlerts(float64(len(e.live)))
	e.log.WithFields(logrus.Fields{"uuid": merged.UUID, "klass": class.Name}).
		Info("One-shot alert created")
	return nil
}

// OneshotDelete removes matching one-shot alerts of the given classes
// and persists the deletion immediately so it survives a crash.
func (e *Engine) OneshotDelete(classNames []string, query map[string]interface{}) error {
	var targets []*registry.AlertClass
	for _, name := range classNames {
		class, err := e.oneshotClass(name)
		if err != nil {
			return err
		}
		targets = append(targets, class)
	}

	thisNode := e.coord.ThisNode()
	e.jobs.EnqueueWait(func() {
		for _, class := range targets {
			// Only this controller's alerts are candidates; the peer owns
			// its own one-shots after a role swap.
			var related []models.Alert
			for _, alert := range e.live {
				if alert.Class == class.Name && alert.Node == thisNode {
					related = append(related, alert)
				}
			}
			if len(related) == 0 {
				continue
			}

			kept := class.OneShot.Delete(related, query)
			keptIDs := make(map[uuid.UUID]bool, len(kept))
			for _, alert := range kept {
				keptIDs[alert.UUID] = true
			}
			for _, alert := range related {
				if !keptIDs[alert.UUID] {
					e.remove(alert)
				}
			}
		}
		e.flushLocked()
		e.metrics.SetActiveAlerts(float64(len(e.live)))
	})

	e.jobs.Enqueue(e.dispatch)
	return nil
}

func (e *Engine) oneshotClass(name string) (*registry.AlertClass, error) {
	class, ok := e.classes.Get(name)
	if !ok {
		return nil, models.NewValidationError("klass", "unknown alert class %q", name)
	}
	if !class.IsOneShot() {
		return nil, models.NewValidationError("klass", "alert class %q is not a one-shot class", name)
	}
	return class, nil
}

// ClassConfigView is the admin serialization of one class with its
// effective settings.
type ClassConfigView struct {
	Class             string `json:"klass"`
	Title             string `json:"title"`
	Category          string `json:"category"`
	Level             string `json:"level"`
	Policy            string `json:"policy"`
	ProactiveSupport  bool   `json:"proactive_support"`
	SupportsProactive bool   `json:"supports_proactive"`
}

// ClassConfigs lists the configurable classes with effective settings.
func (e *Engine) ClassConfigs() []ClassConfigView {
	var out []ClassConfigView
	e.jobs.EnqueueWait(func() {
		for _, class := range e.classes.All() {
			if class.ExcludeFromList || !models.HasProduct(class.Products, e.product) {
				continue
			}
			out = append(out, e.classConfigView(class))
		}
	})
	return out
}

// ClassConfig returns one class's effective settings.
func (e *Engine) ClassConfig(name string) (ClassConfigView, error) {
	class, ok := e.classes.Get(name)
	if !ok || class.ExcludeFromList {
		return ClassConfigView{}, fmt.Errorf("unknown alert class %q", name)
	}

	var view ClassConfigView
	e.jobs.EnqueueWait(func() {
		view = e.classConfigView(class)
	})
	return view, nil
}

func (e *Engine) classConfigView(class *registry.AlertClass) ClassConfigView {
	return ClassConfigView{
		Class:             class.Name,
		Title:             class.Title,
		Category:          class.Category,
		Level:             e.effectiveLevel(class).String(),
		Policy:            e.effectivePolicy(class),
		ProactiveSupport:  e.effectiveProactive(class),
		SupportsProactive: class.ProactiveSupport,
	}
}

// UpdateClassConfig validates and persists a per-class override, then
// installs it so the next dispatch pass uses it.
func (e *Engine) UpdateClassConfig(ctx context.Context, cfg models.ClassConfig) error {
	class, ok := e.classes.Get(cfg.Class)
	if !ok || class.ExcludeFromList {
		return models.NewValidationError("klass", "unknown alert class %q", cfg.Class)
	}
	if cfg.Policy != "" && !models.ValidPolicy(cfg.Policy) {
		return models.NewValidationError("policy", "unknown delivery policy %q", cfg.Policy)
	}
	if cfg.ProactiveSupport != nil && *cfg.ProactiveSupport && !class.ProactiveSupport {
		return models.NewValidationError("proactive_support",
			"alert class %q does not support proactive support", cfg.Class)
	}

	if err := e.classCfg.Upsert(ctx, cfg); err != nil {
		return err
	}

	e.jobs.EnqueueWait(func() {
		e.configs[cfg.Class] = cfg
	})
	return nil
}

// BuildTestAlert renders the synthetic alert used by the alert service
// test operation.
func (e *Engine) BuildTestAlert() models.AlertView {
	now := e.clk.Now()
	alert := models.Alert{
		UUID:           uuid.New(),
		Node:           e.coord.ThisNode(),
		Class:          classes.Test,
		Args:           map[string]interface{}{},
		Datetime:       now,
		LastOccurrence: now,
	}
	if class, ok := e.classes.Get(classes.Test); ok {
		alert.Text = class.Format(alert.Args)
	}
	return e.view(alert)
}

// OnSystemReady retries a dispatch pass that was deferred while the gate
// was closed. dispatch re-checks the gate, so a node that came back as
// BACKUP keeps the pass latched instead of emitting.
func (e *Engine) OnSystemReady() {
	e.jobs.Enqueue(func() {
		if e.sendOnReady {
			e.dispatch()
		}
	})
}

// BlockFailoverAlerts starts the failover quiescence window.
func (e *Engine) BlockFailoverAlerts() {
	e.coord.BlockFailoverAlerts()
}
