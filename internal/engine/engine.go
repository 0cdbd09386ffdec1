package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"nasmon/internal/classes"
	"nasmon/internal/clock"
	"nasmon/internal/config"
	"nasmon/internal/events"
	"nasmon/internal/ha"
	"nasmon/internal/mail"
	"nasmon/internal/metrics"
	"nasmon/internal/models"
	"nasmon/internal/registry"
	"nasmon/internal/repository"
	"nasmon/internal/services"
	"nasmon/internal/ticket"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// TickInterval is how often the periodic check job fires.
const TickInterval = time.Minute

// FlushInterval is how often the live set is rewritten to the store.
const FlushInterval = time.Hour

// Params collects the engine's collaborators.
type Params struct {
	Classes      *registry.ClassRegistry
	Sources      *registry.SourceRegistry
	Store        repository.AlertStore
	ClassConfigs repository.ClassConfigStore
	Clock        clock.Clock
	Coordinator  *ha.Coordinator
	System       ha.System
	Bus          events.Bus
	Mailer       mail.Mailer
	Tickets      ticket.Client
	Services     *services.Manager
	Metrics      *metrics.Metrics
	Log          *logrus.Logger
	Product      string
	Support      config.SupportConfig
}

// Engine owns the live alert set and everything that mutates it. All
// state below the jobs serializer is touched only on its worker.
type Engine struct {
	classes  *registry.ClassRegistry
	sources  *registry.SourceRegistry
	store    repository.AlertStore
	classCfg repository.ClassConfigStore
	clk      clock.Clock
	coord    *ha.Coordinator
	system   ha.System
	bus      events.Bus
	mailer   mail.Mailer
	tickets  ticket.Client
	svcMgr   *services.Manager
	metrics  *metrics.Metrics
	log      *logrus.Logger
	product  string
	support  config.SupportConfig

	jobs  *Serializer
	locks *LockManager
	stats *SourceStats

	// Engine-owned state, serialized by jobs.
	live          map[uuid.UUID]models.Alert
	identity      map[string]uuid.UUID
	lastRun       map[string]time.Time
	policies      []*Policy
	configs       map[string]models.ClassConfig
	failedSources map[string]bool
	sendOnReady   bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(p Params) *Engine {
	return &Engine{
		classes:       p.Classes,
		sources:       p.Sources,
		store:         p.Store,
		classCfg:      p.ClassConfigs,
		clk:           p.Clock,
		coord:         p.Coordinator,
		system:        p.System,
		bus:           p.Bus,
		mailer:        p.Mailer,
		tickets:       p.Tickets,
		svcMgr:        p.Services,
		metrics:       p.Metrics,
		log:           p.Log,
		product:       p.Product,
		support:       p.Support,
		jobs:          NewSerializer(),
		locks:         NewLockManager(p.Clock),
		stats:         NewSourceStats(),
		live:          make(map[uuid.UUID]models.Alert),
		identity:      make(map[string]uuid.UUID),
		lastRun:       make(map[string]time.Time),
		policies:      NewPolicies(),
		configs:       make(map[string]models.ClassConfig),
		failedSources: make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// Bootstrap rehydrates the live set from the store, drops orphan rows,
// runs one-shot load hooks and primes the policy snapshots so the first
// tick announces nothing.
func (e *Engine) Bootstrap(ctx context.Context) error {
	configs, err := e.classCfg.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load class configs: %w", err)
	}

	rows, err := e.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted alerts: %w", err)
	}

	byClass := make(map[string][]models.Alert)
	for _, row := range rows {
		if _, ok := e.classes.Get(row.Class); !ok {
			e.log.WithFields(logrus.Fields{"uuid": row.UUID, "klass": row.Class}).
				Warn("Dropping persisted alert: unknown class")
			continue
		}
		if row.Source != "" {
			if _, ok := e.sources.Get(row.Source); !ok {
				e.log.WithFields(logrus.Fields{"uuid": row.UUID, "source": row.Source}).
					Warn("Dropping persisted alert: unknown source")
				continue
			}
		}
		byClass[row.Class] = append(byClass[row.Class], row)
	}

	e.jobs.EnqueueWait(func() {
		e.configs = configs

		for className, group := range byClass {
			class, _ := e.classes.Get(className)
			if class.IsOneShot() && class.OneShot.Load != nil {
				group = class.OneShot.Load(group)
			}
			for _, alert := range group {
				alert.Datetime = alert.Datetime.UTC()
				alert.LastOccurrence = alert.LastOccurrence.UTC()
				e.live[alert.UUID] = alert
				e.identity[alert.Identity()] = alert.UUID
			}
		}

		now := e.clk.Now()
		for _, p := range e.policies {
			p.Prime(now, e.live)
		}

		e.metrics.SetActiveAlerts(float64(len(e.live)))
	})

	e.log.Infof("Alert engine bootstrapped with %d alerts (%d rows dropped)", len(e.live), len(rows)-countAlerts(byClass))
	return nil
}

func countAlerts(byClass map[string][]models.Alert) int {
	n := 0
	for _, group := range byClass {
		n += len(group)
	}
	return n
}

// Start launches the periodic tick and the hourly flush.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		tick := time.NewTicker(TickInterval)
		flush := time.NewTicker(FlushInterval)
		defer tick.Stop()
		defer flush.Stop()

		for {
			select {
			case <-e.stopCh:
				return
			case <-tick.C:
				e.jobs.TryTick(e.runTick)
			case <-flush.C:
				e.jobs.Enqueue(e.flushLocked)
			}
		}
	}()
}

// Stop lets the current tick finish, flushes once and stops the worker.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
		e.jobs.EnqueueWait(e.flushLocked)
		e.jobs.Close()
	})
}

// Tick forces one engine tick through the serializer. Used by tests and
// by the admin trigger.
func (e *Engine) Tick() {
	e.jobs.EnqueueWait(e.runTick)
	e.jobs.EnqueueWait(func() {})
}

// gateOpen is the pre-flight check: never run or dispatch on a non-ready
// system, on a BACKUP node, or while a failover is in progress.
func (e *Engine) gateOpen() bool {
	if e.system.State() != ha.StateReady {
		return false
	}
	if e.system.HAStatus() == ha.StatusBackup {
		return false
	}
	if e.system.FailoverInProgress() {
		return false
	}
	return true
}

// runTick executes one engine pass: run due sources, merge their alerts,
// expire TTLed ones and hand off to the dispatcher.
func (e *Engine) runTick() {
	if !e.gateOpen() {
		return
	}

	span := opentracing.StartSpan("alert-engine-tick")
	defer span.Finish()

	now := e.clk.Now()
	ctx := context.Background()
	tc := e.coord.Context(ctx)

	// Snapshot for rollback if a failover starts mid-tick. lastRun is
	// included so discarded source runs are retried on the next tick.
	snapshot := copyAlerts(e.live)
	identitySnapshot := make(map[string]uuid.UUID, len(e.identity))
	for k, v := range e.identity {
		identitySnapshot[k] = v
	}
	lastRunSnapshot := make(map[string]time.Time, len(e.lastRun))
	for k, v := range e.lastRun {
		lastRunSnapshot[k] = v
	}

	e.locks.Sweep()
	e.metrics.SetBlockedSources(float64(len(e.locks.BlockedSources())))

	for _, source := range e.sources.All() {
		if !models.HasProduct(source.Products, e.product) {
			continue
		}
		if source.FailoverRelated && tc.FailoverAlertsBlocked {
			continue
		}
		if source.RequireStablePeer && !tc.StablePeer {
			continue
		}
		if e.locks.Blocked(source.Name) {
			continue
		}
		if !source.Schedule.ShouldRun(now, e.lastRun[source.Name]) {
			continue
		}
		e.lastRun[source.Name] = now

		e.runSource(ctx, source, tc, now, span)
	}

	e.expire(now)

	// Failover may have started while sources were running; do not let a
	// half-finished pass leak into the live set.
	if !e.gateOpen() {
		e.live = snapshot
		e.identity = identitySnapshot
		e.lastRun = lastRunSnapshot
		e.log.Warn("Engine tick aborted: gate closed mid-tick, state restored")
		return
	}

	e.metrics.IncEngineTicks()
	e.metrics.SetActiveAlerts(float64(len(e.live)))

	e.jobs.Enqueue(e.dispatch)
}

// runSource runs one source locally and, when HA allows, on the peer.
func (e *Engine) runSource(ctx context.Context, source *registry.Source, tc ha.TickContext, now time.Time, parent opentracing.Span) {
	span := opentracing.StartSpan("run-source", opentracing.ChildOf(parent.Context()))
	span.SetTag("source", source.Name)
	defer span.Finish()

	raw, err := e.checkSource(ctx, source)
	switch {
	case errors.Is(err, registry.ErrSourceUnavailable):
		// Skip without touching the source's slice.
		return
	case err != nil:
		if !e.failedSources[source.Name] {
			e.log.WithFields(logrus.Fields{"source": source.Name}).
				Errorf("Alert source failed: %v", err)
			e.failedSources[source.Name] = true
		}
		span.SetTag("error", true)
		raw = []models.Alert{{
			Class: classes.SourceRunFailed,
			Args:  map[string]interface{}{"source": source.Name, "error": err.Error()},
		}}
	default:
		delete(e.failedSources, source.Name)
	}

	e.replaceSlice(source.Name, tc.ThisNode, e.normalize(raw, source.Name, tc.ThisNode, now), now)

	if !source.RunOnBackupNode || !e.coord.Licensed() {
		return
	}
	if !tc.CanRunOnPeer {
		// Peer checks are disabled this tick; leave its slice alone.
		return
	}

	peerAlerts, err := e.coord.RunSourceOnPeer(ctx, source.Name)
	switch {
	case errors.Is(err, ha.ErrPeerUnavailable):
		peerAlerts = nil
	case err != nil:
		peerAlerts = []models.Alert{{
			Class: classes.SourceRunFailedOnBackupNode,
			Args:  map[string]interface{}{"source": source.Name, "error": err.Error()},
		}}
	}

	e.replaceSlice(source.Name, tc.OtherNode, e.normalize(peerAlerts, source.Name, tc.OtherNode, now), now)
}

func (e *Engine) checkSource(ctx context.Context, source *registry.Source) ([]models.Alert, error) {
	start := time.Now()
	alerts, err := source.Check(ctx)
	elapsed := time.Since(start)

	e.stats.Record(source.Name, elapsed)
	e.metrics.ObserveSourceRunTime(source.Name, elapsed.Seconds())

	return alerts, err
}

// normalize fills in the engine-owned fields of raw source output and
// drops alerts referencing unknown classes.
func (e *Engine) normalize(raw []models.Alert, source, node string, now time.Time) []models.Alert {
	var out []models.Alert
	for _, alert := range raw {
		class, ok := e.classes.Get(alert.Class)
		if !ok {
			e.log.WithFields(logrus.Fields{"source": source, "klass": alert.Class}).
				Warn("Dropping alert with unknown class")
			continue
		}
		alert.Source = source
		alert.Node = node
		if alert.Args == nil {
			alert.Args = make(map[string]interface{})
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
		out = append(out, alert)
	}
	return out
}

// replaceSlice swaps the (source, node) slice of the live set with new
// observations, carrying identity across per the state machine: matching
// alerts keep their UUID, first-seen time and dismissed flag.
func (e *Engine) replaceSlice(source, node string, observed []models.Alert, now time.Time) {
	for id, alert := range e.live {
		if alert.Source == source && alert.Node == node {
			delete(e.live, id)
			delete(e.identity, alert.Identity())
		}
	}

	for _, alert := range observed {
		e.mergeAlert(alert, now)
	}
}

// mergeAlert applies the identity rules to one observation and installs
// it into the live set.
func (e *Engine) mergeAlert(alert models.Alert, now time.Time) models.Alert {
	alert.LastOccurrence = now

	if existingID, ok := e.identity[alert.Identity()]; ok {
		existing := e.live[existingID]
		alert.UUID = existing.UUID
		alert.Datetime = existing.Datetime
		alert.Dismissed = existing.Dismissed
	} else {
		alert.UUID = uuid.New()
		alert.Dismissed = false
	}

	e.live[alert.UUID] = alert
	e.identity[alert.Identity()] = alert.UUID
	return alert
}

// expire garbage-collects one-shot alerts past their class TTL.
func (e *Engine) expire(now time.Time) {
	for id, alert := range e.live {
		class, ok := e.classes.Get(alert.Class)
		if !ok || !class.IsOneShot() || class.OneShot.ExpiresAfter <= 0 {
			continue
		}
		if alert.LastOccurrence.Before(now.Add(-class.OneShot.ExpiresAfter)) {
			delete(e.live, id)
			delete(e.identity, alert.Identity())
			e.log.WithFields(logrus.Fields{"uuid": id, "klass": alert.Class}).
				Debug("Expired one-shot alert")
		}
	}
}

// flushLocked rewrites the persistence store wholesale. The BACKUP node
// never writes; the ACTIVE node owns persistence.
func (e *Engine) flushLocked() {
	if e.system.HAStatus() == ha.StatusBackup {
		return
	}

	alerts := make([]models.Alert, 0, len(e.live))
	for _, alert := range e.live {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Datetime.Before(alerts[j].Datetime) })

	if err := e.store.ReplaceAll(context.Background(), alerts); err != nil {
		e.log.Errorf("Failed to flush alerts: %v", err)
	}
}

// ---- effective per-class configuration ----

func (e *Engine) effectiveLevel(class *registry.AlertClass) models.Level {
	if cfg, ok := e.configs[class.Name]; ok && cfg.Level != nil {
		return *cfg.Level
	}
	return class.Level
}

func (e *Engine) effectivePolicy(class *registry.AlertClass) string {
	if cfg, ok := e.configs[class.Name]; ok && cfg.Policy != "" {
		return cfg.Policy
	}
	return models.PolicyImmediately
}

func (e *Engine) effectiveProactive(class *registry.AlertClass) bool {
	if !class.ProactiveSupport {
		return false
	}
	if cfg, ok := e.configs[class.Name]; ok && cfg.ProactiveSupport != nil {
		return *cfg.ProactiveSupport
	}
	return true
}

// classShown is the event/list visibility of a class: not excluded,
// product matches, effective policy not NEVER.
func (e *Engine) classShown(class *registry.AlertClass) bool {
	return !class.ExcludeFromList &&
		models.HasProduct(class.Products, e.product) &&
		e.effectivePolicy(class) != models.PolicyNever
}

// view serializes one alert for the API and the event stream.
func (e *Engine) view(alert models.Alert) models.AlertView {
	title := alert.Class
	level := models.LevelInfo
	oneShot := false
	if class, ok := e.classes.Get(alert.Class); ok {
		title = class.Title
		level = e.effectiveLevel(class)
		oneShot = class.IsOneShot()
	}

	formatted := alert.Text
	return models.AlertView{
		ID:             alert.UUID.String(),
		Node:           models.NodeLabel(alert.Node),
		Class:          alert.Class,
		Title:          title,
		Level:          level.String(),
		Formatted:      formatted,
		Args:           alert.Args,
		Datetime:       alert.Datetime,
		LastOccurrence: alert.LastOccurrence,
		Dismissed:      alert.Dismissed,
		OneShot:        oneShot,
	}
}
