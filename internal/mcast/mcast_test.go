package mcast_test

import (
	"context"
	"net"
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/mdnsmcast/internal/mcast"
	"github.com/AdguardTeam/mdnsmcast/internal/mdnstest"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"github.com/stretchr/testify/require"
)

// Common test addresses.
var (
	testIPv4A = netip.MustParseAddr("192.0.2.1")
	testIPv4B = netip.MustParseAddr("192.0.2.2")
	testIPv4C = netip.MustParseAddr("192.0.2.3")
	testIPv6C = netip.MustParseAddr("fe80::c")
	testIPv6G = netip.MustParseAddr("2001:db8::1")

	testRemote = netip.MustParseAddrPort("192.0.2.100:5353")
)

// writtenPacket is a datagram written by a test socket.
type writtenPacket struct {
	dst   net.Addr
	laddr string
	data  []byte
}

// testConn is a fake socket.  Datagrams sent into incoming are returned from
// its reads until it's closed.  exited is closed once a read has returned
// [net.ErrClosed].
type testConn struct {
	*mdnstest.PacketConn

	incoming chan []byte
	closed   chan struct{}
	exited   chan struct{}
	closes   *atomic.Int32
}

// newTestConn returns a new fake socket with the name laddr.  Written
// datagrams are sent to written, which must have enough buffer.
func newTestConn(laddr string, written chan<- writtenPacket) (c *testConn) {
	c = &testConn{
		incoming: make(chan []byte),
		closed:   make(chan struct{}),
		exited:   make(chan struct{}),
		closes:   &atomic.Int32{},
	}

	closeOnce := sync.OnceFunc(func() { close(c.closed) })
	exitOnce := sync.OnceFunc(func() { close(c.exited) })

	c.PacketConn = &mdnstest.PacketConn{
		OnClose: func() (err error) {
			c.closes.Add(1)
			closeOnce()

			return nil
		},
		OnLocalAddr: func() (a net.Addr) {
			return &net.UDPAddr{}
		},
		OnReadFrom: func(b []byte) (n int, addr net.Addr, err error) {
			select {
			case p := <-c.incoming:
				return copy(b, p), net.UDPAddrFromAddrPort(testRemote), nil
			case <-c.closed:
				exitOnce()

				return 0, nil, net.ErrClosed
			}
		},
		OnWriteTo: func(b []byte, addr net.Addr) (n int, err error) {
			written <- writtenPacket{
				dst:   addr,
				laddr: laddr,
				data:  slices.Clone(b),
			}

			return len(b), nil
		},
	}

	return c
}

// testReceiverConn is a fake receiving socket.  JoinGroup returns joinErr.
type testReceiverConn struct {
	*testConn

	joined  chan string
	joinErr error
}

// type check
var _ mcast.ReceiverConn = (*testReceiverConn)(nil)

// JoinGroup implements the [mcast.ReceiverConn] interface for
// *testReceiverConn.
func (c *testReceiverConn) JoinGroup(iface *net.Interface) (err error) {
	c.joined <- iface.Name

	return c.joinErr
}

// testSockets is the set of fake sockets created by a [mdnstest.ListenConfig]
// returned by [newTestListenConfig].
type testSockets struct {
	mu        *sync.Mutex
	receivers map[netutil.AddrFamily]*testReceiverConn
	senders   map[netip.Addr]*testConn
	written   chan writtenPacket

	// joinErr, if not nil, is returned from JoinGroup of the receivers created
	// after it's set.
	joinErr error
}

// receiver returns the receiver of fam.
func (s *testSockets) receiver(fam netutil.AddrFamily) (c *testReceiverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.receivers[fam]
}

// sender returns the sender bound to addr.
func (s *testSockets) sender(addr netip.Addr) (c *testConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.senders[addr]
}

// newTestListenConfig returns a listen config creating fake sockets.  onSender,
// if not nil, is called before creating every sender and may return an error.
func newTestListenConfig(
	onSender func(la *netiface.LocalAddr) (err error),
) (lc *mdnstest.ListenConfig, socks *testSockets) {
	socks = &testSockets{
		mu:        &sync.Mutex{},
		receivers: map[netutil.AddrFamily]*testReceiverConn{},
		senders:   map[netip.Addr]*testConn{},
		written:   make(chan writtenPacket, 100),
	}

	lc = &mdnstest.ListenConfig{
		OnListenReceiver: func(
			_ context.Context,
			fam netutil.AddrFamily,
		) (c mcast.ReceiverConn, err error) {
			socks.mu.Lock()
			defer socks.mu.Unlock()

			rc := &testReceiverConn{
				testConn: newTestConn(fam.String(), socks.written),
				joined:   make(chan string, 100),
				joinErr:  socks.joinErr,
			}

			socks.receivers[fam] = rc

			return rc, nil
		},
		OnListenSender: func(
			_ context.Context,
			la *netiface.LocalAddr,
		) (c net.PacketConn, err error) {
			if onSender != nil {
				err = onSender(la)
				if err != nil {
					return nil, err
				}
			}

			sc := newTestConn(la.Addr.WithZone("").String(), socks.written)

			socks.mu.Lock()
			defer socks.mu.Unlock()

			socks.senders[la.Addr.WithZone("")] = sc

			return sc, nil
		},
	}

	return lc, socks
}

// newTestTransport returns a new transport with conf, filling the missing
// fields with defaults, and registers its shutdown in the cleanup.
func newTestTransport(tb testing.TB, conf *mcast.Config) (tr *mcast.Transport) {
	tb.Helper()

	if conf.Logger == nil {
		conf.Logger = slogutil.NewDiscardLogger()
	}

	if conf.ErrColl == nil {
		conf.ErrColl = mdnstest.NewErrorCollector()
	}

	if conf.Metrics == nil {
		conf.Metrics = mcast.EmptyMetrics{}
	}

	if conf.ReceiveBufferSize == 0 {
		conf.ReceiveBufferSize = mcast.DefaultReceiveBufferSize
	}

	ctx := testutil.ContextWithTimeout(tb, mdnstest.Timeout)
	tr, err := mcast.New(ctx, conf)
	require.NoError(tb, err)

	testutil.CleanupAndRequireSuccess(tb, func() (err error) {
		return tr.Shutdown(testutil.ContextWithTimeout(tb, mdnstest.Timeout))
	})

	return tr
}

// localAddrs returns the addresses of las.
func localAddrs(las []*netiface.LocalAddr) (addrs []netip.Addr) {
	for _, la := range las {
		addrs = append(addrs, la.Addr)
	}

	return addrs
}
