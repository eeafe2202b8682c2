package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neoportal",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "JSON-RPC requests by network, method and outcome.",
	}, []string{"network", "method", "outcome"})

	failoversTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neoportal",
		Subsystem: "rpc",
		Name:      "failovers_total",
		Help:      "Endpoint failovers by network.",
	}, []string{"network"})
)
