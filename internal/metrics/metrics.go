package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {

	// Counters
	engineTicks      prometheus.Counter
	eventsEmitted    *prometheus.CounterVec // Has labels: event (ADDED/CHANGED/REMOVED)
	dispatchFailures *prometheus.CounterVec // Has labels: service
	ticketsOpened    *prometheus.CounterVec // Has labels: status (success/failure)

	// Gauges
	activeAlerts   prometheus.Gauge
	blockedSources prometheus.Gauge

	// Histograms
	sourceRunTime *prometheus.HistogramVec // Has labels: source
}

// NewMetrics builds the metric set and registers it with the default
// prometheus registry for the /metrics endpoint.
func NewMetrics() *Metrics {
	m := NewUnregistered()

	prometheus.MustRegister(m.engineTicks)

	prometheus.MustRegister(m.eventsEmitted)

	prometheus.MustRegister(m.dispatchFailures)

	prometheus.MustRegister(m.ticketsOpened)

	prometheus.MustRegister(m.activeAlerts)

	prometheus.MustRegister(m.blockedSources)

	prometheus.MustRegister(m.sourceRunTime)

	return m
}

// NewUnregistered builds the metric set without touching the global
// registry. Tests create many engines in one process and would collide
// on registration otherwise.
func NewUnregistered() *Metrics {

	m := &Metrics{
		engineTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alertd_engine_ticks_total",
				Help: "Total number of completed engine ticks",
			},
		),
		eventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertd_events_emitted_total",
				Help: "Total number of alert.list events emitted",
			},
			[]string{"event"},
		),
		dispatchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertd_dispatch_failures_total",
				Help: "Total number of failed alert service sends",
			},
			[]string{"service"},
		),
		ticketsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertd_tickets_opened_total",
				Help: "Total number of proactive support tickets opened",
			},
			[]string{"status"},
		),
		activeAlerts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alertd_active_alerts",
				Help: "Current number of live alerts",
			},
		),
		blockedSources: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alertd_blocked_sources",
				Help: "Current number of sources with at least one live lock",
			},
		),
		sourceRunTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "alertd_source_run_duration_seconds",
				Help: "Time taken to run one alert source in seconds",
			},
			[]string{"source"},
		),
	}

	return m
}

func (m *Metrics) IncEngineTicks() {
	m.engineTicks.Inc()
}

func (m *Metrics) IncEventsEmitted(event string) {
	m.eventsEmitted.WithLabelValues(event).Inc()
}

func (m *Metrics) IncDispatchFailures(service string) {
	m.dispatchFailures.WithLabelValues(service).Inc()
}

func (m *Metrics) IncTicketsOpened(status string) {
	m.ticketsOpened.WithLabelValues(status).Inc()
}

func (m *Metrics) SetActiveAlerts(count float64) {
	m.activeAlerts.Set(count)
}

func (m *Metrics) SetBlockedSources(count float64) {
	m.blockedSources.Set(count)
}

func (m *Metrics) ObserveSourceRunTime(source string, seconds float64) {
	m.sourceRunTime.WithLabelValues(source).Observe(seconds)
}
