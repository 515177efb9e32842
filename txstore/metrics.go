package txstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var StoredEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "bridge",
	Subsystem: "store",
	Name:      "entries",
})
