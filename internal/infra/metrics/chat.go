package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(chatTurnsTotal, intakeTransitionsTotal, sessionLockWaitMs) }

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns by outcome (welcome, reply, invalid, busy, model_error, store_error).",
		},
		[]string{"outcome"},
	)

	intakeTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_transitions_total",
			Help: "Intake state transitions taken on user turns.",
		},
		[]string{"from", "to"},
	)

	sessionLockWaitMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_lock_wait_ms",
			Help:    "Time spent waiting for the per-session lock in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 15000},
		},
	)
)

func IncTurn(outcome string) { chatTurnsTotal.WithLabelValues(norm(outcome)).Inc() }

func IncTransition(from, to string) {
	intakeTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func ObserveLockWait(ms int64) { sessionLockWaitMs.Observe(float64(ms)) }

var sessionsPurgedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "sessions_purged_total",
		Help: "Idle sessions removed by the janitor.",
	},
)

func init() { register(sessionsPurgedTotal) }

func AddSessionsPurged(n int64) { sessionsPurgedTotal.Add(float64(n)) }
