package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued     = prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_jobs_enqueued_total", Help: "Total scheduled jobs enqueued"})
	JobsSucceeded    = prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_jobs_succeeded_total", Help: "Jobs completed successfully"})
	JobsRetried      = prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_jobs_retried_total", Help: "Job attempts that failed and will retry"})
	JobsDeadLettered = prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_jobs_dead_lettered_total", Help: "Jobs parked after exhausting retries"})
	JobsInFlight     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "raffle_jobs_inflight", Help: "Jobs currently leased by workers"})
	EntriesAccepted  = prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_entries_accepted_total", Help: "Giveaway entries accepted"})
	EntriesRejected  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "raffle_entries_rejected_total", Help: "Giveaway entries rejected, by reason"}, []string{"reason"})
	WinnersAnnounced = prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_winners_announced_total", Help: "Winner announcements, initial picks and rerolls"})
	Rerolls          = prometheus.NewCounter(prometheus.CounterOpts{Name: "raffle_rerolls_total", Help: "Rerolls after claim timeout or admin request"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsSucceeded,
			JobsRetried,
			JobsDeadLettered,
			JobsInFlight,
			EntriesAccepted,
			EntriesRejected,
			WinnersAnnounced,
			Rerolls,
		)
	})
	return promhttp.Handler()
}
