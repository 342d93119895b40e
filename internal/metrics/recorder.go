package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder aggregates the engine counters on its own registry so the ops
// endpoint only exposes eventd metrics.
type Recorder struct {
	registry *prometheus.Registry

	eventsPersisted prometheus.Counter
	alarmsCreated   prometheus.Counter
	alarmsReduced   prometheus.Counter
	persistFailures prometheus.Counter
	cleanFailures   prometheus.Counter
	duplicateEvents prometheus.Counter
	persistDuration prometheus.Histogram
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{registry: reg}

	r.eventsPersisted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nms_eventd_events_persisted_total",
		Help: "Events durably written to the events table",
	})
	r.alarmsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nms_eventd_alarms_created_total",
		Help: "New alarms created (first event for a reduction key)",
	})
	r.alarmsReduced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nms_eventd_alarms_reduced_total",
		Help: "Events folded into an existing alarm",
	})
	r.persistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nms_eventd_persist_failures_total",
		Help: "Events whose persistence failed and was surfaced to the caller",
	})
	r.cleanFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nms_eventd_clean_failures_total",
		Help: "Best-effort cleanups of reduced events that failed (non-fatal)",
	})
	r.duplicateEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nms_eventd_duplicate_events_total",
		Help: "Ingest envelopes dropped by the redelivery guard",
	})
	r.persistDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nms_eventd_persist_duration_seconds",
		Help:    "Wall time of one event's full persistence path",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(
		r.eventsPersisted, r.alarmsCreated, r.alarmsReduced,
		r.persistFailures, r.cleanFailures, r.duplicateEvents,
		r.persistDuration,
	)
	return r
}

func (r *Recorder) EventPersisted()      { r.eventsPersisted.Inc() }
func (r *Recorder) AlarmCreated()        { r.alarmsCreated.Inc() }
func (r *Recorder) AlarmReduced()        { r.alarmsReduced.Inc() }
func (r *Recorder) PersistFailed()       { r.persistFailures.Inc() }
func (r *Recorder) CleanFailed()         { r.cleanFailures.Inc() }
func (r *Recorder) DuplicateDropped()    { r.duplicateEvents.Inc() }
func (r *Recorder) ObservePersist(d time.Duration) {
	r.persistDuration.Observe(d.Seconds())
}

// Handler exposes the registry for the ops HTTP server.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
