// Package telemetry provides Prometheus metrics for the overlay.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/john/lastemote/internal/emote"
	"github.com/john/lastemote/internal/message"
	"github.com/john/lastemote/internal/overlay"
	"github.com/john/lastemote/internal/provider"
)

var (
	once sync.Once

	// Counters
	LinesTotal      prometheus.Counter
	EmotesMatched   *prometheus.CounterVec
	CatalogFailures *prometheus.CounterVec

	// Gauges
	CatalogEntries *prometheus.GaugeVec
	ComboCount     prometheus.Gauge
	FireIntensity  prometheus.Gauge
	PhaseGauge     prometheus.Gauge // 0=idle,1=active,2=decaying
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		LinesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "lastemote_lines_total", Help: "Chat lines received"})
		EmotesMatched = promauto.NewCounterVec(prometheus.CounterOpts{Name: "lastemote_emotes_matched_total", Help: "Chat lines resolved to an emote, by catalog source"}, []string{"source"})
		CatalogFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "lastemote_catalog_failures_total", Help: "Catalog loads that failed, by loader"}, []string{"loader"})
		CatalogEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "lastemote_catalog_entries", Help: "Emotes loaded per catalog source"}, []string{"source"})
		ComboCount = promauto.NewGauge(prometheus.GaugeOpts{Name: "lastemote_combo_count", Help: "Current combo count"})
		FireIntensity = promauto.NewGauge(prometheus.GaugeOpts{Name: "lastemote_fire_intensity", Help: "Current fire intensity, 0 when hidden"})
		PhaseGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "lastemote_phase", Help: "Combo phase: 0=idle 1=active 2=decaying"})
	})
}

// RecordCatalog publishes catalog load outcomes
func RecordCatalog(results []provider.Result, entries func(emote.SourceID) int) {
	Init()
	for _, r := range results {
		if r.Err != nil {
			CatalogFailures.WithLabelValues(r.Loader).Inc()
		}
		CatalogEntries.WithLabelValues(r.Source.String()).Set(float64(entries(r.Source)))
	}
}

// MetricsSink mirrors snapshots into gauges
type MetricsSink struct{}

// NewMetricsSink registers metrics and returns the sink
func NewMetricsSink() MetricsSink {
	Init()
	return MetricsSink{}
}

func (MetricsSink) Render(s overlay.Snapshot) {
	ComboCount.Set(float64(s.Count))
	FireIntensity.Set(s.Intensity)
	PhaseGauge.Set(float64(s.Phase))
}

// Classifier wraps an overlay classifier with line and match counters
type Classifier struct {
	next overlay.Classifier
}

// InstrumentClassifier registers metrics and wraps c
func InstrumentClassifier(c overlay.Classifier) *Classifier {
	Init()
	return &Classifier{next: c}
}

func (c *Classifier) Classify(line message.Line) (emote.Ref, bool) {
	LinesTotal.Inc()
	ref, ok := c.next.Classify(line)
	if ok {
		EmotesMatched.WithLabelValues(ref.Source.String()).Inc()
	}
	return ref, ok
}
