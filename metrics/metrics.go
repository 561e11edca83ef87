package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EngineLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedup_engine_loads_total",
			Help: "Engine load attempts by result",
		},
		[]string{"result"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedup_jobs_total",
			Help: "Finished jobs by outcome",
		},
		[]string{"outcome"},
	)

	FallbackAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedup_fallback_attempts_total",
			Help: "Jobs whose primary attempt failed and were retried video-only",
		},
	)

	JobProgressPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedup_job_progress_percent",
			Help: "Progress of the active job",
		},
	)

	LiveResourceHandles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedup_live_resource_handles",
			Help: "Currently tracked download handles",
		},
	)
)
