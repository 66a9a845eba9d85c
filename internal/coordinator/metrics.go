package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	initAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediationd",
			Subsystem: "coordinator",
			Name:      "init_attempts_total",
			Help:      "Underlying SDK initialize calls issued",
		},
		[]string{"network"},
	)

	initOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediationd",
			Subsystem: "coordinator",
			Name:      "init_outcomes_total",
			Help:      "Resolved SDK initializations by outcome",
		},
		[]string{"network", "outcome"},
	)

	loadRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediationd",
			Subsystem: "coordinator",
			Name:      "load_requests_total",
			Help:      "LoadAd calls by admission result",
		},
		[]string{"network", "result"},
	)

	showRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediationd",
			Subsystem: "coordinator",
			Name:      "show_requests_total",
			Help:      "ShowAd calls by result",
		},
		[]string{"network", "result"},
	)

	routedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediationd",
			Subsystem: "coordinator",
			Name:      "routed_events_total",
			Help:      "SDK events routed, by whether a live listener received them",
		},
		[]string{"network", "event", "delivered"},
	)

	registeredUnits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mediationd",
			Subsystem: "coordinator",
			Name:      "registered_ad_units",
			Help:      "Registry entries, including released ones not yet reclaimed",
		},
		[]string{"network"},
	)
)

func init() {
	prometheus.MustRegister(initAttemptsTotal, initOutcomesTotal, loadRequestsTotal, showRequestsTotal, routedEventsTotal, registeredUnits)
}
