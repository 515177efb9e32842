package attestation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var PollAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bridge",
	Subsystem: "attestation",
	Name:      "poll_attempts_total",
}, []string{"lookup"})

func observeAttempt(hasCoordinates bool) {
	if hasCoordinates {
		PollAttempts.WithLabelValues("coordinates").Inc()
		return
	}
	PollAttempts.WithLabelValues("tx_hash").Inc()
}
