package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Mcast is the Prometheus-based implementation of the [mcast.Metrics]
// interface.
type Mcast struct {
	// sentIPv4 is the counter of datagrams sent to the IPv4 group.
	sentIPv4 prometheus.Counter

	// sentIPv6 is the counter of datagrams sent to the IPv6 group.
	sentIPv6 prometheus.Counter

	// sendErrorsIPv4 is the counter of failed sends to the IPv4 group.
	sendErrorsIPv4 prometheus.Counter

	// sendErrorsIPv6 is the counter of failed sends to the IPv6 group.
	sendErrorsIPv6 prometheus.Counter

	// received is the counter of received datagrams.
	received prometheus.Counter

	// senders is the gauge with the current number of sending sockets.
	senders prometheus.Gauge

	// receivers is the gauge with the current number of receiving sockets.
	receivers prometheus.Gauge

	// writeDuration is the histogram of the durations of single writes.
	writeDuration prometheus.Observer
}

// NewMcast registers the multicast transport metrics in reg and returns a
// properly initialized *Mcast.
func NewMcast(namespace string, reg prometheus.Registerer) (m *Mcast, err error) {
	const (
		sentTotal            = "sent_total"
		sendErrorsTotal      = "send_errors_total"
		receivedTotal        = "received_total"
		sendersCount         = "senders"
		receiversCount       = "receivers"
		writeDurationSeconds = "write_duration_seconds"
	)

	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      sentTotal,
		Namespace: namespace,
		Subsystem: subsystemMcast,
		Help:      "The total number of datagrams sent to the multicast group.",
	}, []string{"family"})

	sendErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      sendErrorsTotal,
		Namespace: namespace,
		Subsystem: subsystemMcast,
		Help:      "The total number of failed sends to the multicast group.",
	}, []string{"family"})

	received := prometheus.NewCounter(prometheus.CounterOpts{
		Name:      receivedTotal,
		Namespace: namespace,
		Subsystem: subsystemMcast,
		Help:      "The total number of received datagrams.",
	})

	senders := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      sendersCount,
		Namespace: namespace,
		Subsystem: subsystemMcast,
		Help:      "The current number of sending sockets.",
	})

	receivers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      receiversCount,
		Namespace: namespace,
		Subsystem: subsystemMcast,
		Help:      "The current number of receiving sockets, including the sending ones.",
	})

	writeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:      writeDurationSeconds,
		Namespace: namespace,
		Subsystem: subsystemMcast,
		Help:      "The duration of a write to a multicast socket.",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
	})

	m = &Mcast{
		sentIPv4:       sent.WithLabelValues(netutil.AddrFamilyIPv4.String()),
		sentIPv6:       sent.WithLabelValues(netutil.AddrFamilyIPv6.String()),
		sendErrorsIPv4: sendErrors.WithLabelValues(netutil.AddrFamilyIPv4.String()),
		sendErrorsIPv6: sendErrors.WithLabelValues(netutil.AddrFamilyIPv6.String()),
		received:       received,
		senders:        senders,
		receivers:      receivers,
		writeDuration:  writeDuration,
	}

	var errs []error
	collectors := []struct {
		collector prometheus.Collector
		name      string
	}{{
		collector: sent,
		name:      sentTotal,
	}, {
		collector: sendErrors,
		name:      sendErrorsTotal,
	}, {
		collector: received,
		name:      receivedTotal,
	}, {
		collector: senders,
		name:      sendersCount,
	}, {
		collector: receivers,
		name:      receiversCount,
	}, {
		collector: writeDuration,
		name:      writeDurationSeconds,
	}}

	for _, c := range collectors {
		err = reg.Register(c.collector)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.name, err))
		}
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// The type check is performed in the test file to prevent a dependency.

// IncrementSent implements the [mcast.Metrics] interface for *Mcast.
func (m *Mcast) IncrementSent(_ context.Context, fam netutil.AddrFamily) {
	IncrementCond(fam == netutil.AddrFamilyIPv4, m.sentIPv4, m.sentIPv6)
}

// IncrementSendErrors implements the [mcast.Metrics] interface for *Mcast.
func (m *Mcast) IncrementSendErrors(_ context.Context, fam netutil.AddrFamily) {
	IncrementCond(fam == netutil.AddrFamilyIPv4, m.sendErrorsIPv4, m.sendErrorsIPv6)
}

// IncrementReceived implements the [mcast.Metrics] interface for *Mcast.
func (m *Mcast) IncrementReceived(_ context.Context) {
	m.received.Inc()
}

// SetSockets implements the [mcast.Metrics] interface for *Mcast.
func (m *Mcast) SetSockets(_ context.Context, senders, receivers uint) {
	m.senders.Set(float64(senders))
	m.receivers.Set(float64(receivers))
}

// ObserveWriteDuration implements the [mcast.Metrics] interface for *Mcast.
func (m *Mcast) ObserveWriteDuration(_ context.Context, dur time.Duration) {
	m.writeDuration.Observe(dur.Seconds())
}

// IncrementCond increments trueCounter if cond is true and falseCounter
// otherwise.
func IncrementCond(cond bool, trueCounter, falseCounter prometheus.Counter) {
	if cond {
		trueCounter.Inc()
	} else {
		falseCounter.Inc()
	}
}
