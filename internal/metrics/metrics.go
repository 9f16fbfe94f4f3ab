package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch holds the SOS engine's counters. Each instance owns its registry so
// several engines (tests, tools) can coexist in one process.
type Dispatch struct {
	registry *prometheus.Registry

	triggersTotal        *prometheus.CounterVec
	selectionTotal       *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	notifyDuration       prometheus.Histogram
	responseUpdatesTotal *prometheus.CounterVec
	strandedTotal        prometheus.Counter
	rateLimitedTotal     *prometheus.CounterVec
	awaitingResponse     prometheus.Gauge
}

func NewDispatch() *Dispatch {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Dispatch{
		registry: reg,
		triggersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_triggers_total",
				Help: "SOS triggers by outcome",
			},
			[]string{"outcome"},
		),
		selectionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_candidate_selection_total",
				Help: "Candidate selections by phase (radius, fallback, none)",
			},
			[]string{"phase"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_notifications_total",
				Help: "Push sends by result",
			},
			[]string{"result"},
		),
		notifyDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sos_notify_duration_seconds",
				Help:    "Duration of a single push send",
				Buckets: prometheus.DefBuckets,
			},
		),
		responseUpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_response_updates_total",
				Help: "Volunteer response updates by reported status",
			},
			[]string{"status"},
		),
		strandedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sos_alerts_stranded_total",
				Help: "Alerts where every notified volunteer reported UnableToAssist",
			},
		),
		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_rate_limited_total",
				Help: "Requests rejected by the per-user rate limiter",
			},
			[]string{"route"},
		),
		awaitingResponse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sos_alerts_awaiting_response",
				Help: "Notified alerts with no volunteer progress past the stale threshold",
			},
		),
	}
}

func (d *Dispatch) Trigger(outcome string) {
	d.triggersTotal.WithLabelValues(outcome).Inc()
}

func (d *Dispatch) Selection(phase string) {
	d.selectionTotal.WithLabelValues(phase).Inc()
}

// Notification records one push send and how long it took.
func (d *Dispatch) Notification(ok bool, seconds float64) {
	result := "success"
	if !ok {
		result = "failure"
	}
	d.notificationsTotal.WithLabelValues(result).Inc()
	d.notifyDuration.Observe(seconds)
}

func (d *Dispatch) ResponseUpdate(status string) {
	d.responseUpdatesTotal.WithLabelValues(status).Inc()
}

func (d *Dispatch) Stranded() {
	d.strandedTotal.Inc()
}

func (d *Dispatch) RateLimited(route string) {
	d.rateLimitedTotal.WithLabelValues(route).Inc()
}

// AwaitingResponse sets the number of alerts still waiting on a volunteer.
func (d *Dispatch) AwaitingResponse(n int) {
	d.awaitingResponse.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (d *Dispatch) Registry() *prometheus.Registry {
	return d.registry
}

// Handler serves the registry in the Prometheus text format.
func (d *Dispatch) Handler() http.Handler {
	return promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})
}
