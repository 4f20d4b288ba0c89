// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const namespace = "paperwatch"

// Collector holds the pipeline metrics on its own registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	rawEvents     *prometheus.CounterVec
	settledEvents *prometheus.CounterVec
	extractions   *prometheus.CounterVec
	matches       *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	references    prometheus.Gauge
	ledgerEntries prometheus.Gauge
	processTime   prometheus.Histogram
}

// NewCollector creates a Collector with process and Go runtime metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rawEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_events_total",
			Help:      "Filesystem events received per watch target.",
		}, []string{"target", "kind"}),
		settledEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_events_total",
			Help:      "Events emitted after the debounce window.",
		}, []string{"target", "kind"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Documents processed by the extraction tier that produced the title.",
		}, []string{"tier"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Match results by tier.",
		}, []string{"tier"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Organization outcomes by status.",
		}, []string{"status"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_reloads_total",
			Help:      "Reference list reloads by result.",
		}, []string{"result"}),
		references: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "references",
			Help:      "References in the current snapshot.",
		}),
		ledgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Live entries in the processed-path ledger.",
		}),
		processTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time from settled event to outcome for one document.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.rawEvents, c.settledEvents, c.extractions, c.matches,
		c.outcomes, c.reloads, c.references, c.ledgerEntries, c.processTime,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RawEvent counts one filesystem event.
func (c *Collector) RawEvent(ev types.RawEvent) {
	if c == nil {
		return
	}
	c.rawEvents.WithLabelValues(ev.Target, string(ev.Kind)).Inc()
}

// SettledEvent counts one debounced event.
func (c *Collector) SettledEvent(ev types.SettledEvent) {
	if c == nil {
		return
	}
	c.settledEvents.WithLabelValues(ev.Target, string(ev.Kind)).Inc()
}

// Document records one processed document and how long it took.
func (c *Collector) Document(cand types.CandidateDocument, res types.MatchResult, out *types.OrganizationOutcome, took time.Duration) {
	if c == nil {
		return
	}
	c.extractions.WithLabelValues(string(cand.Tier)).Inc()
	c.matches.WithLabelValues(string(res.Tier)).Inc()
	if out != nil {
		c.outcomes.WithLabelValues(string(out.Status)).Inc()
	}
	c.processTime.Observe(took.Seconds())
}

// Reload records a reference reload and the resulting snapshot size.
func (c *Collector) Reload(err error, references int) {
	if c == nil {
		return
	}
	if err != nil {
		c.reloads.WithLabelValues("error").Inc()
		return
	}
	c.reloads.WithLabelValues("ok").Inc()
	c.references.Set(float64(references))
}

// LedgerSize sets the ledger gauge.
func (c *Collector) LedgerSize(n int) {
	if c == nil {
		return
	}
	c.ledgerEntries.Set(float64(n))
}
