package cmd

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/mdnsmcast/internal/mcast"
	"github.com/miekg/dns"
)

// inboundLogger is a [mcast.Handler] that logs a summary of every received
// message.
type inboundLogger struct {
	logger *slog.Logger
}

// newInboundLogger returns a new properly initialized *inboundLogger.
func newInboundLogger(baseLogger *slog.Logger) (h *inboundLogger) {
	return &inboundLogger{
		logger: baseLogger.With(slogutil.KeyPrefix, "inbound"),
	}
}

// type check
var _ mcast.Handler = (*inboundLogger)(nil)

// ServeDatagram implements the [mcast.Handler] interface for *inboundLogger.
func (h *inboundLogger) ServeDatagram(ctx context.Context, d *mcast.Datagram) {
	l := h.logger.With("raddr", d.Remote, "laddr", d.Local, "size", len(d.Payload))

	msg := &dns.Msg{}
	err := msg.Unpack(d.Payload)
	if err != nil {
		l.DebugContext(ctx, "bad message", slogutil.KeyError, err)

		return
	}

	args := []any{
		"id", msg.Id,
		"response", msg.Response,
		"questions", len(msg.Question),
		"answers", len(msg.Answer),
		"additional", len(msg.Extra),
	}

	if len(msg.Question) > 0 {
		q := msg.Question[0]
		args = append(args, "qname", q.Name, "qtype", dns.Type(q.Qtype))
	}

	l.DebugContext(ctx, "received message", args...)
}
