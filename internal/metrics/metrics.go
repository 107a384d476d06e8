// Package metrics contains the Prometheus implementations of the metrics
// interfaces of mdnsmcast.
package metrics

import (
	"fmt"
	"runtime"

	"github.com/AdguardTeam/mdnsmcast/internal/version"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the default namespace of the metrics.
const Namespace = "mdns"

// Subsystem names of the metrics.
const (
	subsystemApplication = "app"
	subsystemMcast       = "mcast"
)

// SetUpGauge registers the gauge signaling that the program has been started
// in reg.  The gauge has a constant value of 1 and is labeled with the build
// information.
func SetUpGauge(namespace string, reg prometheus.Registerer) (err error) {
	upGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "up",
		Namespace: namespace,
		Subsystem: subsystemApplication,
		Help: `A metric with a constant '1' value labeled by ` +
			`version and goversion from which the program was built.`,
		ConstLabels: prometheus.Labels{
			"version":    version.Version(),
			"committime": version.CommitTime(),
			"branch":     version.Branch(),
			"revision":   version.Revision(),
			"goversion":  runtime.Version(),
		},
	})

	err = reg.Register(upGauge)
	if err != nil {
		return fmt.Errorf("registering up gauge: %w", err)
	}

	upGauge.Set(1)

	return nil
}
