// Package metrics содержит счетчики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для меток.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

var (
	// Transitions считает операции жизненного цикла постов.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alchemy",
		Name:      "post_transitions_total",
		Help:      "Post lifecycle operations by operation and result.",
	}, []string{"operation", "result"})

	// CounterConflicts считает проигранные CAS счетчиков.
	CounterConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alchemy",
		Name:      "counter_conflicts_total",
		Help:      "Counter compare-and-swap conflicts by counter.",
	}, []string{"counter"})

	// Allocations считает выданные номера.
	Allocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alchemy",
		Name:      "counter_allocations_total",
		Help:      "Issued sequence numbers by counter.",
	}, []string{"counter"})

	// Recycles считает действия с evergreen-постами.
	Recycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alchemy",
		Name:      "evergreen_actions_total",
		Help:      "Evergreen recycler actions (clone, snooze, dismiss) by result.",
	}, []string{"action", "result"})

	// DigestsSent считает отправленные дайджесты.
	DigestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "alchemy",
		Name:      "digests_sent_total",
		Help:      "Daily digests handed to the sender.",
	})
)

// Result возвращает метку результата для err.
func Result(err error, rejected func(error) bool) string {
	switch {
	case err == nil:
		return ResultOK
	case rejected != nil && rejected(err):
		return ResultRejected
	default:
		return ResultError
	}
}
