// Package metricsexport exposes scheduler-core metrics to Prometheus:
// schedule makespan/energy summaries and the policy scheduler's live
// energy budget, served on /metrics.
package metricsexport

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chicogong/escheduler/pkg/metricsagg"
)

// Exporter owns a private Prometheus registry for the scheduler's
// metrics, so mounting it never collides with other registrations in
// the same process.
type Exporter struct {
	registry *prometheus.Registry

	makespanSeconds prometheus.Gauge
	totalEnergyJ    prometheus.Gauge
	resourceUtil    *prometheus.GaugeVec
	summaryGauges   *prometheus.GaugeVec

	policyBudgetJ   prometheus.Gauge
	policyCompleted prometheus.Counter
	policyDeferred  prometheus.Counter
}

// New builds and registers every metric on a fresh registry.
func New() *Exporter {
	reg := prometheus.NewRegistry()

	e := &Exporter{
		registry: reg,
		makespanSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "escheduler_plan_makespan_seconds",
			Help: "Makespan of the most recently produced schedule.",
		}),
		totalEnergyJ: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "escheduler_plan_total_energy_joules",
			Help: "Total energy of the most recently produced schedule.",
		}),
		resourceUtil: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "escheduler_plan_resource_utilization_percent",
			Help: "Per-resource busy-time utilization of the most recent schedule.",
		}, []string{"resource_id"}),
		summaryGauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "escheduler_sample_summary",
			Help: "Aggregated sample statistics by metric name and statistic.",
		}, []string{"metric", "stat"}),
		policyBudgetJ: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "escheduler_policy_energy_budget_joules",
			Help: "Remaining energy budget of the live policy scheduler run.",
		}),
		policyCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escheduler_policy_tasks_completed_total",
			Help: "Tasks the policy scheduler has dispatched successfully.",
		}),
		policyDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escheduler_policy_tasks_deferred_total",
			Help: "Tasks the policy scheduler left undispatched for budget or deadline reasons.",
		}),
	}

	reg.MustRegister(
		e.makespanSeconds,
		e.totalEnergyJ,
		e.resourceUtil,
		e.summaryGauges,
		e.policyBudgetJ,
		e.policyCompleted,
		e.policyDeferred,
	)
	return e
}

// Handler returns the HTTP handler to mount at /metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ObserveSchedule records a planning result's headline numbers.
func (e *Exporter) ObserveSchedule(makespan, totalEnergyJ float64, utilization map[int]float64) {
	e.makespanSeconds.Set(makespan)
	e.totalEnergyJ.Set(totalEnergyJ)
	for id, pct := range utilization {
		e.resourceUtil.WithLabelValues(strconv.Itoa(id)).Set(pct)
	}
}

// ObserveSummary records an aggregated sample summary under metric,
// exposing every statistic as its own label value.
func (e *Exporter) ObserveSummary(metric string, s metricsagg.Summary) {
	e.summaryGauges.WithLabelValues(metric, "mean").Set(s.Mean)
	e.summaryGauges.WithLabelValues(metric, "min").Set(s.Min)
	e.summaryGauges.WithLabelValues(metric, "max").Set(s.Max)
	e.summaryGauges.WithLabelValues(metric, "p95").Set(s.P95)
	e.summaryGauges.WithLabelValues(metric, "p99").Set(s.P99)
	e.summaryGauges.WithLabelValues(metric, "stddev").Set(s.StdDev)
}

// SetPolicyBudget reflects the policy scheduler's current remaining
// energy budget.
func (e *Exporter) SetPolicyBudget(joules float64) {
	e.policyBudgetJ.Set(joules)
}

// IncPolicyCompleted records one successfully dispatched task.
func (e *Exporter) IncPolicyCompleted() {
	e.policyCompleted.Inc()
}

// IncPolicyDeferred records one task left undispatched due to budget or
// deadline.
func (e *Exporter) IncPolicyDeferred() {
	e.policyDeferred.Inc()
}
