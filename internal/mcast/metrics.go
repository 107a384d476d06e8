package mcast

import (
	"context"
	"time"

	"github.com/AdguardTeam/golibs/netutil"
)

// Metrics is an interface for collecting statistics of the multicast
// transport.
type Metrics interface {
	// IncrementSent increments the counter of datagrams successfully written to
	// the group of fam.
	IncrementSent(ctx context.Context, fam netutil.AddrFamily)

	// IncrementSendErrors increments the counter of failed sends through the
	// senders of fam.
	IncrementSendErrors(ctx context.Context, fam netutil.AddrFamily)

	// IncrementReceived increments the counter of received datagrams.
	IncrementReceived(ctx context.Context)

	// SetSockets sets the current number of sending and receiving sockets.
	SetSockets(ctx context.Context, senders, receivers uint)

	// ObserveWriteDuration observes the duration of a single datagram write.
	ObserveWriteDuration(ctx context.Context, dur time.Duration)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// IncrementSent implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementSent(_ context.Context, _ netutil.AddrFamily) {}

// IncrementSendErrors implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementSendErrors(_ context.Context, _ netutil.AddrFamily) {}

// IncrementReceived implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementReceived(_ context.Context) {}

// SetSockets implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetSockets(_ context.Context, _, _ uint) {}

// ObserveWriteDuration implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveWriteDuration(_ context.Context, _ time.Duration) {}
