package mcast

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"slices"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/mdnsmcast/internal/errcoll"
	"github.com/AdguardTeam/mdnsmcast/internal/optslog"
)

// deliveryQueueSize is the number of datagrams read from a socket that may
// wait for delivery to the handlers.
const deliveryQueueSize = 64

// receiver is a socket the transport reads datagrams from.
type receiver struct {
	conn net.PacketConn

	// local is the address the socket is bound to.
	local netip.Addr
}

// serve starts the goroutines reading from r and delivering the datagrams to
// the subscribers.  The goroutines exit once r.conn is closed.
func (t *Transport) serve(ctx context.Context, r *receiver) {
	logger := t.logger.With("local", r.local)
	queue := make(chan *Datagram, deliveryQueueSize)

	t.wg.Add(2)
	go t.readLoop(ctx, logger, r, queue)
	go t.deliverLoop(ctx, logger, queue)
}

// readLoop reads datagrams from r and sends them into queue until a read
// fails.  It closes queue on return.
func (t *Transport) readLoop(
	ctx context.Context,
	logger *slog.Logger,
	r *receiver,
	queue chan<- *Datagram,
) {
	defer t.wg.Done()
	defer close(queue)
	defer slogutil.RecoverAndLog(ctx, logger)

	for {
		d, err := t.read(r)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.DebugContext(ctx, "reading", slogutil.KeyError, err)
			}

			return
		}

		t.metrics.IncrementReceived(ctx)
		optslog.Trace2(ctx, logger, "received", "raddr", d.Remote, "size", len(d.Payload))

		queue <- d
	}
}

// read reads a single datagram from r.  The payload of d is a copy of the
// pooled read buffer.
func (t *Transport) read(r *receiver) (d *Datagram, err error) {
	bufPtr := t.bufPool.Get()
	defer t.bufPool.Put(bufPtr)

	n, raddr, err := r.conn.ReadFrom(*bufPtr)
	if err != nil {
		// Don't wrap the error, since it's checked for [net.ErrClosed] by the
		// caller.
		return nil, err
	}

	return &Datagram{
		Payload: slices.Clone((*bufPtr)[:n]),
		Remote:  netutil.NetAddrToAddrPort(raddr),
		Local:   r.local,
	}, nil
}

// deliveryCtxKey is the context key marking the contexts of the handlers of a
// transport.  Its value is the *Transport.
type deliveryCtxKey struct{}

// isDeliveryCtx returns true if ctx is, or is derived from, the context of a
// handler called by t.
func (t *Transport) isDeliveryCtx(ctx context.Context) (ok bool) {
	v, _ := ctx.Value(deliveryCtxKey{}).(*Transport)

	return v == t
}

// deliverLoop publishes the datagrams from queue until it's closed.
func (t *Transport) deliverLoop(ctx context.Context, logger *slog.Logger, queue <-chan *Datagram) {
	defer t.wg.Done()
	defer slogutil.RecoverAndLog(ctx, logger)

	hdlrCtx := context.WithValue(ctx, deliveryCtxKey{}, t)
	for d := range queue {
		for _, sub := range t.subs.snapshot() {
			if t.closed.Load() {
				// Drain the queue so that the reader isn't blocked.
				break
			}

			t.publish(hdlrCtx, logger, sub.h, d)
		}
	}
}

// publish calls h with d, recovering from and reporting its panics.
func (t *Transport) publish(ctx context.Context, logger *slog.Logger, h Handler, d *Datagram) {
	defer func() {
		err := errors.FromRecovered(recover())
		if err == nil {
			return
		}

		errcoll.Collect(ctx, t.errColl, logger, "handling datagram", err)
		slogutil.PrintStack(ctx, logger, slog.LevelError)
	}()

	h.ServeDatagram(ctx, d)
}
