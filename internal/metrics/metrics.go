// Package metrics holds the process-wide Prometheus collectors of the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rename outcomes
const (
	RenameIssued     = "issued"
	RenameSuppressed = "suppressed"
	RenameFailed     = "failed"
)

// Relay and broadcast results
const (
	ResultOk     = "ok"
	ResultFailed = "failed"
)

var (
	relays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_relays_total",
			Help: "Relayed items by direction and result.",
		},
		[]string{"direction", "result"},
	)
	topicRenames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_topic_renames_total",
			Help: "Topic rename requests by outcome.",
		},
		[]string{"outcome"},
	)
	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_topic_reconciliations_total",
			Help: "Topic reconciliations after an invalid topic, by result.",
		},
		[]string{"result"},
	)
	broadcastSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_broadcast_sends_total",
			Help: "Broadcast recipient sends by result.",
		},
		[]string{"result"},
	)
	stagedBroadcasts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportdesk_broadcasts_staged",
			Help: "Broadcasts staged and waiting for confirmation.",
		},
	)
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportdesk_job_runs_total",
			Help: "Periodic job runs by job and result.",
		},
		[]string{"job", "result"},
	)
	liveFeedConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportdesk_live_feed_connections",
			Help: "Current number of admin live feed connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(relays, topicRenames, reconciliations, broadcastSends, stagedBroadcasts, jobRuns, liveFeedConnections)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRelay(direction string, ok bool) {
	relays.WithLabelValues(direction, result(ok)).Inc()
}

func ObserveRename(outcome string) {
	topicRenames.WithLabelValues(outcome).Inc()
}

func ObserveReconcile(ok bool) {
	reconciliations.WithLabelValues(result(ok)).Inc()
}

func ObserveBroadcastSend(ok bool) {
	broadcastSends.WithLabelValues(result(ok)).Inc()
}

func SetStagedBroadcasts(n int) {
	stagedBroadcasts.Set(float64(n))
}

func ObserveJob(job string, ok bool) {
	jobRuns.WithLabelValues(job, result(ok)).Inc()
}

func IncLiveFeedConnections() {
	liveFeedConnections.Inc()
}

func DecLiveFeedConnections() {
	liveFeedConnections.Dec()
}

func result(ok bool) string {
	if ok {
		return ResultOk
	}
	return ResultFailed
}
