package cmd

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/mdnsmcast/internal/mdnstest"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAnnounceTransport is an [announceTransport] for tests.
type testAnnounceTransport struct {
	sent   chan *dns.Msg
	laddrs []*netiface.LocalAddr
}

// type check
var _ announceTransport = (*testAnnounceTransport)(nil)

// Senders implements the [announceTransport] interface for
// *testAnnounceTransport.
func (t *testAnnounceTransport) Senders() (laddrs []*netiface.LocalAddr) {
	return t.laddrs
}

// SendFiltered implements the [announceTransport] interface for
// *testAnnounceTransport.
func (t *testAnnounceTransport) SendFiltered(_ context.Context, msg *dns.Msg) {
	testutil.RequireSend(testutil.PanicT{}, t.sent, msg, mdnstest.Timeout)
}

// newTestAnnouncer returns an announcer for tests that sends through a test
// transport with the given senders.
func newTestAnnouncer(
	tb testing.TB,
	laddrs ...*netiface.LocalAddr,
) (a *announcer, sent chan *dns.Msg) {
	tb.Helper()

	sent = make(chan *dns.Msg, 1)
	a = newAnnouncer(&announcerConfig{
		baseLogger: slogutil.NewDiscardLogger(),
		transport: &testAnnounceTransport{
			sent:   sent,
			laddrs: laddrs,
		},
		host:     "myhost.local",
		ttl:      2 * time.Minute,
		interval: time.Hour,
		timeout:  mdnstest.Timeout,
	})

	return a, sent
}

// requireAnnouncement checks that msg is an announcement of myhost.local with
// the given TTL.
func requireAnnouncement(tb testing.TB, msg *dns.Msg, wantTTL uint32) {
	tb.Helper()

	require.NotNil(tb, msg)
	assert.True(tb, msg.Response)
	assert.True(tb, msg.Authoritative)
	require.Len(tb, msg.Answer, 1)

	a := testutil.RequireTypeAssert[*dns.A](tb, msg.Answer[0])
	assert.Equal(tb, "myhost.local.", a.Hdr.Name)
	assert.Equal(tb, wantTTL, a.Hdr.Ttl)
}

func TestAnnouncer(t *testing.T) {
	eth0 := mdnstest.NewNetInterface(1, "eth0")
	la := &netiface.LocalAddr{
		Iface: eth0,
		Addr:  netip.MustParseAddr("192.0.2.1"),
	}

	a, sent := newTestAnnouncer(t, la)

	err := a.Start(testutil.ContextWithTimeout(t, mdnstest.Timeout))
	require.NoError(t, err)

	msg, _ := testutil.RequireReceive(t, sent, mdnstest.Timeout)
	requireAnnouncement(t, msg, 120)

	err = a.Refresh(testutil.ContextWithTimeout(t, mdnstest.Timeout))
	require.NoError(t, err)

	msg, _ = testutil.RequireReceive(t, sent, mdnstest.Timeout)
	requireAnnouncement(t, msg, 120)

	err = a.Shutdown(testutil.ContextWithTimeout(t, mdnstest.Timeout))
	require.NoError(t, err)

	msg, _ = testutil.RequireReceive(t, sent, mdnstest.Timeout)
	requireAnnouncement(t, msg, 0)
}

func TestAnnouncer_noSenders(t *testing.T) {
	a, sent := newTestAnnouncer(t)

	err := a.Refresh(testutil.ContextWithTimeout(t, mdnstest.Timeout))
	require.NoError(t, err)

	assert.Empty(t, sent)
}

func TestAnnouncer_badHost(t *testing.T) {
	a, sent := newTestAnnouncer(t, &netiface.LocalAddr{
		Iface: mdnstest.NewNetInterface(1, "eth0"),
		Addr:  netip.MustParseAddr("192.0.2.1"),
	})
	a.host = "bad..host"

	err := a.Refresh(testutil.ContextWithTimeout(t, mdnstest.Timeout))
	assert.ErrorContains(t, err, "building announcement")

	assert.Empty(t, sent)
}
