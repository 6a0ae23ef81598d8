package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brasa/internal/errs"
)

// Metrics exports engine counters to Prometheus and mirrors the latest
// values into a Monitor snapshot. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	monitor  *Monitor

	policyDenials   *prometheus.CounterVec
	dataGaps        *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	recalculations  prometheus.Counter
	wasteLogs       *prometheus.CounterVec
	planCost        prometheus.Histogram
	networkImpact   *prometheus.GaugeVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		monitor:  NewMonitor(),
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brasa_policy_denials_total",
				Help: "Waste log submissions rejected by the compliance gate",
			},
			[]string{"reason"},
		),
		dataGaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brasa_data_gaps_total",
				Help: "Fallback values used for missing costs, forecasts, rules or targets",
			},
			[]string{"code"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brasa_conflicts_total",
				Help: "Writes that lost a unique store+date race",
			},
			[]string{"resource"},
		),
		recalculations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brasa_target_recalculations_total",
			Help: "Store target tables rebuilt",
		}),
		wasteLogs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brasa_waste_logs_total",
				Help: "Accepted waste logs",
			},
			[]string{"shift"},
		),
		planCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brasa_plan_cost_per_guest",
			Help:    "Projected cost per guest of generated prep plans",
			Buckets: prometheus.LinearBuckets(6, 0.5, 16),
		}),
		networkImpact: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brasa_network_financial_impact",
				Help: "Signed financial impact of the last network variance, negative is savings",
			},
			[]string{"company"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brasa_http_request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}

	registry.MustRegister(
		m.policyDenials,
		m.dataGaps,
		m.conflicts,
		m.recalculations,
		m.wasteLogs,
		m.planCost,
		m.networkImpact,
		m.requestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Snapshot returns the JSON view of the latest values.
func (m *Metrics) Snapshot() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m.monitor.Snapshot()
}

func (m *Metrics) PolicyDenied(reason errs.Reason) {
	if m == nil {
		return
	}
	m.policyDenials.WithLabelValues(string(reason)).Inc()
	m.monitor.Increment("policy_denials_" + string(reason))
}

func (m *Metrics) DataGaps(warnings []errs.Warning) {
	if m == nil {
		return
	}
	for _, w := range warnings {
		m.dataGaps.WithLabelValues(string(w.Code)).Inc()
		m.monitor.Increment("data_gaps_" + string(w.Code))
	}
}

func (m *Metrics) Conflict(resource string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(resource).Inc()
	m.monitor.Increment("conflicts_" + resource)
}

func (m *Metrics) TargetsRecalculated() {
	if m == nil {
		return
	}
	m.recalculations.Inc()
	m.monitor.Increment("target_recalculations")
	m.monitor.Set("last_recalculation", time.Now().Format(time.RFC3339))
}

func (m *Metrics) WasteLogged(shift string) {
	if m == nil {
		return
	}
	m.wasteLogs.WithLabelValues(shift).Inc()
	m.monitor.Increment("waste_logs_" + shift)
}

func (m *Metrics) PlanCost(costPerGuest float64) {
	if m == nil {
		return
	}
	m.planCost.Observe(costPerGuest)
	m.monitor.Set("last_plan_cost_per_guest", costPerGuest)
}

func (m *Metrics) NetworkImpact(company string, impact float64) {
	if m == nil {
		return
	}
	m.networkImpact.WithLabelValues(company).Set(impact)
	m.monitor.Set("network_impact_"+company, impact)
}

func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, status).Observe(d.Seconds())
}
