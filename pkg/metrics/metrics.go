package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote store client
	RemoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_remote_requests_total",
		Help: "Requests sent to the sheet API by operation and outcome",
	}, []string{"op", "outcome"})
	RemoteRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quest_remote_request_latency_seconds",
		Help:    "Latency of sheet API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// Player flows
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_registrations_total",
		Help: "Registrations by where the record ended up (remote or local)",
	}, []string{"source"})
	ScoreUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_score_updates_total",
		Help: "Score updates by remote outcome (synced, deferred, failed)",
	}, []string{"outcome"})
	SyncAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_sync_attempts_total",
		Help: "Offline sync attempts by outcome",
	}, []string{"outcome"})
	LeaderboardReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_leaderboard_reads_total",
		Help: "Leaderboard reads by source (remote or local)",
	}, []string{"source"})
	ConnectivityTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quest_connectivity_transitions_total",
		Help: "Online/offline transitions observed by the connectivity monitor",
	}, []string{"state"})

	// Player events
	EventsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_events_published_total",
		Help: "Player events published to Kafka",
	})
	EventsPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_events_publish_errors_total",
		Help: "Player events that failed to publish",
	})

	// Mirror
	MirrorMessagesConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_mirror_messages_consumed_total",
		Help: "Player events consumed from Kafka",
	})
	MirrorMalformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_mirror_malformed_total",
		Help: "Player events skipped because they could not be parsed",
	})
	MirrorBatchWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_mirror_batch_writes_total",
		Help: "Batch upserts written to PostgreSQL",
	})
	MirrorWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_mirror_write_errors_total",
		Help: "Errors during PostgreSQL batch upserts",
	})
	MirrorMessagesCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quest_mirror_messages_committed_total",
		Help: "Player events committed after their rows were written",
	})
	MirrorHeldMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quest_mirror_held_messages",
		Help: "Messages held back after a failed write, waiting to be retried",
	})
	MirrorUpsertLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quest_mirror_upsert_latency_seconds",
		Help:    "Latency of PostgreSQL batch upserts",
		Buckets: prometheus.DefBuckets,
	})
)
