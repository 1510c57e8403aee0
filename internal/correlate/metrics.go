package correlate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of correlation runs. A nil *Metrics
// records nothing.
type Metrics struct {
	DisplayEvents  prometheus.Counter
	ContextSpans   prometheus.Counter
	Drained        *prometheus.CounterVec
	OverflowDrains prometheus.Counter
	Untracked      prometheus.Counter
	TimelineDepth  prometheus.Gauge
	ActiveThreads  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	displayEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ctxview_display_events_total",
		Help: "Display events accepted by filters",
	})

	contextSpans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ctxview_context_spans_total",
		Help: "Context spans pushed onto the timeline",
	})

	drained := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ctxview_timeline_drained_total",
		Help: "Timeline entries processed, by role",
	}, []string{"role"})

	overflowDrains := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ctxview_timeline_overflow_drains_total",
		Help: "Entries forced out because the timeline exceeded its window",
	})

	untracked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ctxview_untracked_contexts_total",
		Help: "Context span starts dropped because the record has no thread",
	})

	timelineDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ctxview_timeline_depth",
		Help: "Entries currently buffered in the timeline",
	})

	activeThreads := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ctxview_active_threads",
		Help: "Threads with at least one open context span",
	})

	reg.MustRegister(displayEvents, contextSpans, drained, overflowDrains, untracked, timelineDepth, activeThreads)

	return &Metrics{
		DisplayEvents:  displayEvents,
		ContextSpans:   contextSpans,
		Drained:        drained,
		OverflowDrains: overflowDrains,
		Untracked:      untracked,
		TimelineDepth:  timelineDepth,
		ActiveThreads:  activeThreads,
	}
}

const (
	roleStart   = "start"
	roleEnd     = "end"
	roleDisplay = "display"
)

func (m *Metrics) display() {
	if m != nil {
		m.DisplayEvents.Inc()
	}
}

func (m *Metrics) span() {
	if m != nil {
		m.ContextSpans.Inc()
	}
}

func (m *Metrics) drained(role string, overflow bool) {
	if m == nil {
		return
	}
	m.Drained.WithLabelValues(role).Inc()
	if overflow {
		m.OverflowDrains.Inc()
	}
}

func (m *Metrics) untracked() {
	if m != nil {
		m.Untracked.Inc()
	}
}

func (m *Metrics) depth(timeline, threads int) {
	if m == nil {
		return
	}
	m.TimelineDepth.Set(float64(timeline))
	m.ActiveThreads.Set(float64(threads))
}
