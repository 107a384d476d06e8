package mcast_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/mdnsmcast/internal/mcast"
	"github.com/AdguardTeam/mdnsmcast/internal/mdnstest"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStartedTransport returns a started transport with a single IPv4 sender
// bound to testIPv4A.
func newStartedTransport(t *testing.T, conf *mcast.Config) (tr *mcast.Transport, socks *testSockets) {
	t.Helper()

	var lc *mdnstest.ListenConfig
	lc, socks = newTestListenConfig(nil)

	conf.ListenConfig = lc
	conf.Interfaces = []netiface.NetInterface{
		mdnstest.NewNetInterface(1, "eth0", testIPv4A),
	}
	conf.UseIPv4 = true

	tr = newTestTransport(t, conf)

	err := tr.Start(testutil.ContextWithTimeout(t, mdnstest.Timeout))
	require.NoError(t, err)

	return tr, socks
}

func TestTransport_receive(t *testing.T) {
	tr, socks := newStartedTransport(t, &mcast.Config{})

	received := make(chan *mcast.Datagram, 2)
	tr.Subscribe(mcast.HandlerFunc(func(_ context.Context, d *mcast.Datagram) {
		received <- d
	}))

	data := []byte{1, 2, 3, 4}

	rcv := socks.receiver(netutil.AddrFamilyIPv4)
	testutil.RequireSend(t, rcv.incoming, data, mdnstest.Timeout)

	d, _ := testutil.RequireReceive(t, received, mdnstest.Timeout)
	require.NotNil(t, d)

	assert.Equal(t, data, d.Payload)
	assert.Equal(t, testRemote, d.Remote)
	assert.Equal(t, netip.IPv4Unspecified(), d.Local)

	snd := socks.sender(testIPv4A)
	testutil.RequireSend(t, snd.incoming, data, mdnstest.Timeout)

	d, _ = testutil.RequireReceive(t, received, mdnstest.Timeout)
	require.NotNil(t, d)

	assert.Equal(t, data, d.Payload)
	assert.Equal(t, testIPv4A, d.Local)

	// The payload isn't shared with the read buffer.
	data[0] = 0
	assert.Equal(t, byte(1), d.Payload[0])
}

func TestTransport_receive_closed(t *testing.T) {
	tr, socks := newStartedTransport(t, &mcast.Config{})

	received := make(chan *mcast.Datagram, 1)
	tr.Subscribe(mcast.HandlerFunc(func(_ context.Context, d *mcast.Datagram) {
		received <- d
	}))

	snd := socks.sender(testIPv4A)
	err := snd.Close()
	require.NoError(t, err)

	_, _ = testutil.RequireReceive(t, snd.exited, mdnstest.Timeout)
	requireNotRead(t, snd)

	// Other sockets still work.
	rcv := socks.receiver(netutil.AddrFamilyIPv4)
	testutil.RequireSend(t, rcv.incoming, []byte{2}, mdnstest.Timeout)

	d, _ := testutil.RequireReceive(t, received, mdnstest.Timeout)
	assert.Equal(t, []byte{2}, d.Payload)
	assert.Empty(t, received)
}

func TestTransport_Subscribe(t *testing.T) {
	tr, socks := newStartedTransport(t, &mcast.Config{})

	first := make(chan *mcast.Datagram, 10)
	unsubFirst := tr.Subscribe(mcast.HandlerFunc(func(_ context.Context, d *mcast.Datagram) {
		first <- d
	}))

	second := make(chan *mcast.Datagram, 10)
	tr.Subscribe(mcast.HandlerFunc(func(_ context.Context, d *mcast.Datagram) {
		second <- d
	}))

	rcv := socks.receiver(netutil.AddrFamilyIPv4)
	testutil.RequireSend(t, rcv.incoming, []byte{1}, mdnstest.Timeout)

	_, _ = testutil.RequireReceive(t, first, mdnstest.Timeout)
	_, _ = testutil.RequireReceive(t, second, mdnstest.Timeout)

	unsubFirst()
	unsubFirst()

	testutil.RequireSend(t, rcv.incoming, []byte{2}, mdnstest.Timeout)

	d, _ := testutil.RequireReceive(t, second, mdnstest.Timeout)
	assert.Equal(t, []byte{2}, d.Payload)
	assert.Empty(t, first)
}

func TestTransport_receive_panic(t *testing.T) {
	collected := make(chan error, 1)
	errColl := &mdnstest.ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			collected <- err
		},
	}

	tr, socks := newStartedTransport(t, &mcast.Config{
		ErrColl: errColl,
	})

	tr.Subscribe(mcast.HandlerFunc(func(_ context.Context, _ *mcast.Datagram) {
		panic("test panic")
	}))

	received := make(chan *mcast.Datagram, 1)
	tr.Subscribe(mcast.HandlerFunc(func(_ context.Context, d *mcast.Datagram) {
		received <- d
	}))

	rcv := socks.receiver(netutil.AddrFamilyIPv4)
	testutil.RequireSend(t, rcv.incoming, []byte{1}, mdnstest.Timeout)

	err, _ := testutil.RequireReceive(t, collected, mdnstest.Timeout)
	assert.ErrorContains(t, err, "handling datagram")
	assert.ErrorContains(t, err, "test panic")

	_, _ = testutil.RequireReceive(t, received, mdnstest.Timeout)

	// The loop still works.
	testutil.RequireSend(t, rcv.incoming, []byte{2}, mdnstest.Timeout)

	_, _ = testutil.RequireReceive(t, collected, mdnstest.Timeout)
	d, _ := testutil.RequireReceive(t, received, mdnstest.Timeout)
	assert.Equal(t, []byte{2}, d.Payload)
}

func TestTransport_receive_afterShutdown(t *testing.T) {
	tr, socks := newStartedTransport(t, &mcast.Config{})

	received := make(chan *mcast.Datagram, 1)
	tr.Subscribe(mcast.HandlerFunc(func(_ context.Context, d *mcast.Datagram) {
		received <- d
	}))

	err := tr.Shutdown(testutil.ContextWithTimeout(t, mdnstest.Timeout))
	require.NoError(t, err)

	rcv := socks.receiver(netutil.AddrFamilyIPv4)
	_, _ = testutil.RequireReceive(t, rcv.exited, mdnstest.Timeout)

	snd := socks.sender(testIPv4A)
	_, _ = testutil.RequireReceive(t, snd.exited, mdnstest.Timeout)

	requireNotRead(t, rcv.testConn)
	requireNotRead(t, snd)

	assert.Empty(t, received)
}

func TestTransport_Shutdown_fromHandler(t *testing.T) {
	tr, socks := newStartedTransport(t, &mcast.Config{})

	shutdownErrs := make(chan error, 1)
	tr.Subscribe(mcast.HandlerFunc(func(ctx context.Context, _ *mcast.Datagram) {
		shutdownErrs <- tr.Shutdown(ctx)
	}))

	rcv := socks.receiver(netutil.AddrFamilyIPv4)
	testutil.RequireSend(t, rcv.incoming, []byte{1}, mdnstest.Timeout)

	err, _ := testutil.RequireReceive(t, shutdownErrs, mdnstest.Timeout)
	require.NoError(t, err)

	_, _ = testutil.RequireReceive(t, rcv.exited, mdnstest.Timeout)
	assert.Zero(t, tr.ReceiverCount())
	assert.Empty(t, tr.Senders())
}

// requireNotRead checks that nothing reads from c for a while.
func requireNotRead(tb testing.TB, c *testConn) {
	tb.Helper()

	const wait = 100 * time.Millisecond

	select {
	case c.incoming <- []byte{1}:
		tb.Fatal("socket has been read from after closing")
	case <-time.After(wait):
	}
}