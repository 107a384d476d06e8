package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"net/netip"
	"testing"

	"github.com/AdguardTeam/mdnsmcast/internal/dnsmsg"
	"github.com/AdguardTeam/mdnsmcast/internal/mcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundLogger_ServeDatagram(t *testing.T) {
	buf := &bytes.Buffer{}
	h := newInboundLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	remote := netip.MustParseAddrPort("192.0.2.100:5353")
	local := netip.MustParseAddr("192.0.2.1")
	ctx := context.Background()

	t.Run("query", func(t *testing.T) {
		buf.Reset()

		packed, err := dnsmsg.NewQuery([]string{"printer.local"}).Pack()
		require.NoError(t, err)

		h.ServeDatagram(ctx, &mcast.Datagram{
			Payload: packed,
			Remote:  remote,
			Local:   local,
		})

		out := buf.String()
		assert.Contains(t, out, "received message")
		assert.Contains(t, out, "questions=2")
		assert.Contains(t, out, "qname=printer.local.")
		assert.Contains(t, out, "qtype=A")
		assert.Contains(t, out, "raddr=192.0.2.100:5353")
	})

	t.Run("garbage", func(t *testing.T) {
		buf.Reset()

		h.ServeDatagram(ctx, &mcast.Datagram{
			Payload: []byte{1, 2, 3},
			Remote:  remote,
			Local:   local,
		})

		out := buf.String()
		assert.Contains(t, out, "bad message")
		assert.NotContains(t, out, "received message")
	})
}
