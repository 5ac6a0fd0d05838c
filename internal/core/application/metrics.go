package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

var (
	commitmentsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "joinstr",
		Name:      "commitments_admitted_total",
		Help:      "Number of peer commitments admitted to local pool projections.",
	})
	commitmentsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinstr",
		Name:      "commitments_rejected_total",
		Help:      "Number of peer commitments dropped, by reason.",
	}, []string{"reason"})
	sessionsTerminal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "joinstr",
		Name:      "sessions_terminal_total",
		Help:      "Number of sessions that reached a terminal status, by status.",
	}, []string{"status"})
)

func statusLabel(status int) string {
	switch status {
	case domain.SessionStatusDone:
		return "done"
	case domain.SessionStatusAborted:
		return "aborted"
	case domain.SessionStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}
