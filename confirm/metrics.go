package confirm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neoportal_confirm_retries_total",
		Help: "Number of unknown-transaction retries while waiting for confirmations.",
	}, []string{"network"})

	retriesExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neoportal_confirm_timeouts_total",
		Help: "Number of confirmation waits that ran out of retries.",
	}, []string{"network"})
)
