// Package metrics exposes the running engine's per-tick observables as
// Prometheus collectors, a secondary channel alongside the trace file
// (which remains authoritative for every testable property).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the simulator's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "snsim",
		Name:      "active_jobs",
		Help:      "Number of jobs in the active set after admission, before the current tick's jobs are advanced.",
	})

	ActiveServices = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "snsim",
		Name:      "active_services",
		Help:      "Number of services the policy ordered for scheduling on the current tick.",
	})

	AbortedJobsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "snsim",
		Name:      "aborted_jobs_total",
		Help:      "Cumulative number of jobs aborted so far.",
	})

	DeclinedJobsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "snsim",
		Name:      "declined_jobs_total",
		Help:      "Cumulative number of jobs declined by the bouncer so far.",
	})

	AccumulatedRevenue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "snsim",
		Name:      "accumulated_revenue",
		Help:      "Cumulative revenue from finished, non-aborted jobs.",
	})

	AccumulatedPenalty = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "snsim",
		Name:      "accumulated_penalty",
		Help:      "Cumulative penalty from aborted jobs.",
	})

	ResourceUtilization = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "snsim",
		Name:      "resource_utilization",
		Help:      "Normalised level (level/capacity) of a pool's resource at the end of the current tick.",
	}, []string{"pool", "resource"})
)

func init() {
	Registry.MustRegister(
		ActiveJobs,
		ActiveServices,
		AbortedJobsTotal,
		DeclinedJobsTotal,
		AccumulatedRevenue,
		AccumulatedPenalty,
		ResourceUtilization,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Observe updates every gauge from one tick's trace entry. Resource
// levels not present in resources are left at their previous value, so
// callers should pass the full per-pool map every tick.
func Observe(activeJobs, activeServices, abortedJobsTotal, declinedJobsTotal int, accRevenue, accPenalty float64, resources map[string]map[string]float64) {
	ActiveJobs.Set(float64(activeJobs))
	ActiveServices.Set(float64(activeServices))
	AbortedJobsTotal.Set(float64(abortedJobsTotal))
	DeclinedJobsTotal.Set(float64(declinedJobsTotal))
	AccumulatedRevenue.Set(accRevenue)
	AccumulatedPenalty.Set(accPenalty)
	for pool, levels := range resources {
		for resource, level := range levels {
			ResourceUtilization.WithLabelValues(pool, resource).Set(level)
		}
	}
}
