package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

//nolint:gochecknoglobals // registered once with the default registry
var (
	// TokenOperationsTotal counts token service operations by outcome.
	TokenOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coachauth_token_operations_total",
		Help: "The total number of token operations",
	}, []string{"operation", "status"})

	SessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachauth_sessions_swept_total",
		Help: "The total number of expired sessions removed by the sweeper",
	})
)

func observe(operation string, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}
	TokenOperationsTotal.WithLabelValues(operation, status).Inc()
}
