package mcast

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/syncutil"
	"github.com/AdguardTeam/mdnsmcast/internal/errcoll"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
)

// Config is the configuration structure for the multicast transport.
type Config struct {
	// Logger is used to log the operation of the transport.  It must not be
	// nil.
	Logger *slog.Logger

	// ErrColl is used to collect non-critical errors.  It must not be nil.
	ErrColl errcoll.Interface

	// Metrics is used to collect the transport statistics.  It must not be
	// nil.
	Metrics Metrics

	// ListenConfig is used to create the sockets.  It must not be nil.
	ListenConfig ListenConfig

	// Interfaces are the network interfaces to send and receive multicast
	// traffic on.  The set is fixed for the lifetime of the transport.
	Interfaces []netiface.NetInterface

	// ReceiveBufferSize is the size of the buffers for incoming datagrams.  It
	// must be positive.
	ReceiveBufferSize int

	// UseIPv4, if true, enables the IPv4 group.
	UseIPv4 bool

	// UseIPv6, if true, enables the IPv6 group.
	UseIPv6 bool
}

// Transport is the dual-stack multicast DNS transport.  It must be created
// with [New], started with [Transport.Start], and released with
// [Transport.Shutdown].
type Transport struct {
	logger     *slog.Logger
	errColl    errcoll.Interface
	metrics    Metrics
	listenConf ListenConfig
	bufPool    *syncutil.Pool[[]byte]
	senders    *senderIndex
	subs       *subscribers

	// mu protects receivers and started.
	mu        *sync.Mutex
	receivers []*receiver
	started   bool

	// wg tracks the receive and delivery goroutines.
	wg *sync.WaitGroup

	shutdownOnce *sync.Once
	closed       *atomic.Bool
}

// New returns a new transport with the sockets for every enabled address
// family and every eligible local address of c.Interfaces.  The addresses that
// can't be used are skipped.  err is only returned if the receiving sockets
// can't be created.  c must not be nil and must be valid.
func New(ctx context.Context, c *Config) (t *Transport, err error) {
	t = &Transport{
		logger:       c.Logger,
		errColl:      c.ErrColl,
		metrics:      c.Metrics,
		listenConf:   c.ListenConfig,
		bufPool:      syncutil.NewSlicePool[byte](c.ReceiveBufferSize),
		senders:      newSenderIndex(),
		subs:         newSubscribers(),
		mu:           &sync.Mutex{},
		wg:           &sync.WaitGroup{},
		shutdownOnce: &sync.Once{},
		closed:       &atomic.Bool{},
	}

	fams := netiface.Families{
		IPv4: c.UseIPv4,
		IPv6: c.UseIPv6,
	}

	famRcvs, err := t.listenReceivers(ctx, fams)
	if err != nil {
		return nil, errors.WithDeferred(err, t.closeReceivers())
	}

	t.listenSenders(ctx, c.Interfaces, fams, famRcvs)

	t.metrics.SetSockets(ctx, uint(t.senders.len()), uint(len(t.receivers)))
	t.logger.InfoContext(
		ctx,
		"created sockets",
		"senders", t.senders.len(),
		"receivers", len(t.receivers),
	)

	return t, nil
}

// familyReceiver is a receiving socket of a family along with the indexes of
// the interfaces on which it has already joined the group.
type familyReceiver struct {
	conn   ReceiverConn
	joined *container.MapSet[int]
}

// listenReceivers creates the wildcard receiving sockets for fams.
func (t *Transport) listenReceivers(
	ctx context.Context,
	fams netiface.Families,
) (famRcvs map[netutil.AddrFamily]*familyReceiver, err error) {
	famRcvs = map[netutil.AddrFamily]*familyReceiver{}
	for _, fam := range enabledFamilies(fams) {
		var conn ReceiverConn
		conn, err = t.listenConf.ListenReceiver(ctx, fam)
		if err != nil {
			return nil, fmt.Errorf("creating %s receiver: %w", fam, err)
		}

		famRcvs[fam] = &familyReceiver{
			conn:   conn,
			joined: container.NewMapSet[int](),
		}

		unspec := netip.IPv4Unspecified()
		if fam == netutil.AddrFamilyIPv6 {
			unspec = netip.IPv6Unspecified()
		}

		t.receivers = append(t.receivers, &receiver{
			conn:  conn,
			local: unspec,
		})
	}

	return famRcvs, nil
}

// enabledFamilies returns the address families enabled in fams.
func enabledFamilies(fams netiface.Families) (enabled []netutil.AddrFamily) {
	if fams.IPv4 {
		enabled = append(enabled, netutil.AddrFamilyIPv4)
	}

	if fams.IPv6 {
		enabled = append(enabled, netutil.AddrFamilyIPv6)
	}

	return enabled
}

// listenSenders creates the senders for the eligible local addresses of
// ifaces.  Each local address is only used once.
func (t *Transport) listenSenders(
	ctx context.Context,
	ifaces []netiface.NetInterface,
	fams netiface.Families,
	famRcvs map[netutil.AddrFamily]*familyReceiver,
) {
	seen := container.NewMapSet[netiface.Key]()
	for _, iface := range ifaces {
		las, err := netiface.LocalAddrs(iface, fams)
		if err != nil {
			errcoll.Collect(ctx, t.errColl, t.logger, "listing local addrs", err)

			continue
		}

		for _, la := range las {
			k := la.Key()
			if seen.Has(k) {
				continue
			}

			seen.Add(k)
			t.addSender(ctx, la, famRcvs[la.Family()])
		}
	}
}

// addSender creates the sender for la and makes rcv join the group on the
// interface of la.  The errors are logged or reported and the local address
// is skipped.
func (t *Transport) addSender(ctx context.Context, la *netiface.LocalAddr, rcv *familyReceiver) {
	conn, err := t.listenConf.ListenSender(ctx, la)
	if err != nil {
		t.handleSetupErr(ctx, la, err)

		return
	}

	iface := la.Iface.Interface()
	if !rcv.joined.Has(iface.Index) {
		err = rcv.conn.JoinGroup(iface)
		if err != nil {
			err = fmt.Errorf("joining group on receiver: %w", err)
			t.handleSetupErr(ctx, la, errors.WithDeferred(err, conn.Close()))

			return
		}

		rcv.joined.Add(iface.Index)
	}

	s := newSender(conn, la)
	if !t.senders.add(s) {
		t.closeConn(ctx, conn)

		return
	}

	t.logger.DebugContext(ctx, "added sender", "laddr", la)

	t.receivers = append(t.receivers, &receiver{
		conn:  conn,
		local: la.Addr,
	})
}

// handleSetupErr logs err at debug level if it means that the address can't be
// bound to and reports it otherwise.
func (t *Transport) handleSetupErr(ctx context.Context, la *netiface.LocalAddr, err error) {
	if isAddrNotAvail(err) {
		t.logger.DebugContext(ctx, "addr not available", "laddr", la, slogutil.KeyError, err)

		return
	}

	errcoll.Collect(ctx, t.errColl, t.logger, "creating sender", fmt.Errorf("%s: %w", la, err))
}

// type check
var _ service.Interface = (*Transport)(nil)

// Start implements the [service.Interface] interface for *Transport.  It
// starts reading from every socket.  Handlers are called with a context
// derived from ctx which is never canceled.  Calling Start on a started or
// shut down transport does nothing.  err is always nil.
func (t *Transport) Start(ctx context.Context) (err error) {
	ctx = context.WithoutCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.closed.Load() {
		return nil
	}

	t.started = true
	for _, r := range t.receivers {
		t.serve(ctx, r)
	}

	return nil
}

// Shutdown implements the [service.Interface] interface for *Transport.  It
// removes all handlers, closes all sockets, and waits for the reading
// goroutines to exit or until ctx is canceled.  When called from a [Handler]
// with its context, it doesn't wait, since the calling goroutine is one of
// them.  Only the first call has any effect; later ones return nil.
func (t *Transport) Shutdown(ctx context.Context) (err error) {
	t.shutdownOnce.Do(func() {
		err = t.shutdown(ctx)
	})

	return err
}

// shutdown releases the resources of t.
func (t *Transport) shutdown(ctx context.Context) (err error) {
	t.subs.clear()
	t.closed.Store(true)

	t.mu.Lock()
	defer t.mu.Unlock()

	closeErr := t.closeReceivers()
	if closeErr != nil {
		t.logger.DebugContext(ctx, "closing sockets", slogutil.KeyError, closeErr)
	}

	t.receivers = nil
	t.senders.clear()
	t.metrics.SetSockets(ctx, 0, 0)

	if t.isDeliveryCtx(ctx) {
		t.logger.InfoContext(ctx, "shut down from handler")

		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		t.wg.Wait()
	}()

	select {
	case <-done:
		t.logger.InfoContext(ctx, "shut down")

		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for receive loops: %w", ctx.Err())
	}
}

// closeReceivers closes all receiving sockets, which include the senders.
// t.mu must be locked if the transport has been started.
func (t *Transport) closeReceivers() (err error) {
	var errs []error
	for _, r := range t.receivers {
		closeErr := r.conn.Close()
		if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing socket for %s: %w", r.local, closeErr))
		}
	}

	return errors.Join(errs...)
}

// closeConn closes conn and logs the error, if any.
func (t *Transport) closeConn(ctx context.Context, conn net.PacketConn) {
	err := conn.Close()
	if err != nil {
		t.logger.DebugContext(ctx, "closing redundant socket", slogutil.KeyError, err)
	}
}

// Subscribe registers h to be called for every received datagram.  The
// returned function unregisters h; it's safe to call it more than once.
func (t *Transport) Subscribe(h Handler) (unsubscribe func()) {
	return t.subs.add(h)
}

// Senders returns the local addresses of the senders.  An empty result means
// that nothing can be sent.
func (t *Transport) Senders() (laddrs []*netiface.LocalAddr) {
	senders := t.senders.all()
	laddrs = make([]*netiface.LocalAddr, 0, len(senders))
	for _, s := range senders {
		laddrs = append(laddrs, s.laddr)
	}

	return laddrs
}

// ReceiverCount returns the number of sockets the transport reads from,
// including the senders.  Zero means that nothing can be received.
func (t *Transport) ReceiverCount() (n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.receivers)
}

// Interfaces returns the names of the interfaces the transport sends through,
// sorted and without duplicates.
func (t *Transport) Interfaces() (names []string) {
	for _, s := range t.senders.all() {
		names = append(names, s.laddr.Iface.Interface().Name)
	}

	slices.Sort(names)

	return slices.Compact(names)
}
