// Package metrics exposes overseer's Prometheus collectors on a private
// registry. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "overseer"

// Collector records decision, reload and review metrics.
type Collector struct {
	registry *prometheus.Registry

	decisions       *prometheus.CounterVec
	riskScore       prometheus.Histogram
	evalDuration    prometheus.Histogram
	ruleMatches     *prometheus.CounterVec
	rateLimited     prometheus.Counter
	collabFailures  *prometheus.CounterVec
	approvalTickets prometheus.Counter

	rulesLoaded   prometheus.Gauge
	reloads       *prometheus.CounterVec
	reviewFinding *prometheus.GaugeVec
	reviewCycles  prometheus.Gauge
	reviewLastRun prometheus.Gauge
}

// New creates a collector with its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Evaluated actions by final status.",
		}, []string{"status"}),
		riskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Aggregate risk score of evaluated actions.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating one action against the rule set.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		ruleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Times each rule matched an evaluated action.",
		}, []string{"rule_id"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Actions rejected by the rate limiter before evaluation.",
		}),
		collabFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Failed audit writes and approval ticket requests.",
		}, []string{"collaborator"}),
		approvalTickets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_tickets_total",
			Help:      "Human approval tickets opened.",
		}),
		rulesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_loaded",
			Help:      "Rules currently registered with the engine.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_reloads_total",
			Help:      "Rule-set file reloads by result.",
		}, []string{"result"}),
		reviewFinding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "review_findings",
			Help:      "Dependency findings from the last rule-set review by code.",
		}, []string{"code"}),
		reviewCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "review_cycles",
			Help:      "Dependency cycles found by the last rule-set review.",
		}),
		reviewLastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "review_last_run_timestamp_seconds",
			Help:      "Unix time of the last rule-set review.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.decisions, c.riskScore, c.evalDuration, c.ruleMatches, c.rateLimited,
		c.collabFailures, c.approvalTickets,
		c.rulesLoaded, c.reloads, c.reviewFinding, c.reviewCycles, c.reviewLastRun,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordDecision records one completed evaluation.
func (c *Collector) RecordDecision(status string, riskScore float64, took time.Duration, matched []string) {
	if c == nil {
		return
	}
	c.decisions.WithLabelValues(status).Inc()
	c.riskScore.Observe(riskScore)
	c.evalDuration.Observe(took.Seconds())
	for _, id := range matched {
		c.ruleMatches.WithLabelValues(id).Inc()
	}
}

// RecordRateLimited counts an action rejected before evaluation.
func (c *Collector) RecordRateLimited() {
	if c == nil {
		return
	}
	c.rateLimited.Inc()
	c.decisions.WithLabelValues("rate_limited").Inc()
}

// RecordCollaboratorFailure counts a failed audit or approval call.
func (c *Collector) RecordCollaboratorFailure(name string) {
	if c == nil {
		return
	}
	c.collabFailures.WithLabelValues(name).Inc()
}

// RecordApprovalTicket counts an opened approval ticket.
func (c *Collector) RecordApprovalTicket() {
	if c == nil {
		return
	}
	c.approvalTickets.Inc()
}

// SetRulesLoaded sets the registered rule count.
func (c *Collector) SetRulesLoaded(n int) {
	if c == nil {
		return
	}
	c.rulesLoaded.Set(float64(n))
}

// RecordReload counts a reload attempt; ok selects the result label.
func (c *Collector) RecordReload(ok bool) {
	if c == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	c.reloads.WithLabelValues(result).Inc()
}

// RecordReview publishes the outcome of a rule-set review. Codes absent
// from findings are reset to zero.
func (c *Collector) RecordReview(findings map[string]int, cycles int, at time.Time) {
	if c == nil {
		return
	}
	c.reviewFinding.Reset()
	for code, n := range findings {
		c.reviewFinding.WithLabelValues(code).Set(float64(n))
	}
	c.reviewCycles.Set(float64(cycles))
	c.reviewLastRun.Set(float64(at.Unix()))
}
