package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/mdnsmcast/internal/dnsmsg"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"github.com/miekg/dns"
)

// announceTransport is the part of *mcast.Transport used by the announcer.
type announceTransport interface {
	Senders() (laddrs []*netiface.LocalAddr)
	SendFiltered(ctx context.Context, msg *dns.Msg)
}

// announcer periodically sends unsolicited responses with the addresses of the
// host.  The transport replaces the addresses with the ones of each outgoing
// interface.  On shutdown, it sends a goodbye response with zero TTL.
type announcer struct {
	logger    *slog.Logger
	transport announceTransport
	refr      *service.RefreshWorker
	host      string
	ttl       time.Duration
}

// announcerConfig is the configuration structure for an announcer.
type announcerConfig struct {
	// baseLogger is used to create the loggers of the announcer.  It must not
	// be nil.
	baseLogger *slog.Logger

	// transport is used to send the announcements.  It must not be nil.
	transport announceTransport

	// host is the announced hostname.  It must be a valid domain name.
	host string

	// ttl is the TTL of the announced records.  It must be positive.
	ttl time.Duration

	// interval is the time between announcements.  It must be positive.
	interval time.Duration

	// timeout is the timeout of a single announcement.  It must be positive.
	timeout time.Duration
}

// newAnnouncer returns a new properly initialized *announcer.  c must not be
// nil and must be valid.
func newAnnouncer(c *announcerConfig) (a *announcer) {
	a = &announcer{
		logger:    c.baseLogger.With(slogutil.KeyPrefix, "announcer"),
		transport: c.transport,
		host:      c.host,
		ttl:       c.ttl,
	}

	a.refr = service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(c.timeout),
		ErrorHandler:       newSlogErrorHandler(c.baseLogger, "announcer_refresh"),
		Refresher:          a,
		Schedule:           timeutil.NewConstSchedule(c.interval),
		RefreshOnShutdown:  false,
	})

	return a
}

// type check
var _ service.Refresher = (*announcer)(nil)

// Refresh implements the [service.Refresher] interface for *announcer.  It
// sends a single announcement.
func (a *announcer) Refresh(ctx context.Context) (err error) {
	return a.announce(ctx, a.ttl)
}

// type check
var _ service.Interface = (*announcer)(nil)

// Start implements the [service.Interface] interface for *announcer.  It sends
// the first announcement and starts the periodic ones.
func (a *announcer) Start(ctx context.Context) (err error) {
	err = a.announce(ctx, a.ttl)
	if err != nil {
		return fmt.Errorf("initial announcement: %w", err)
	}

	err = a.refr.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting announcement refresher: %w", err)
	}

	return nil
}

// Shutdown implements the [service.Interface] interface for *announcer.  It
// stops the periodic announcements and sends the goodbye.
//
// See https://datatracker.ietf.org/doc/html/rfc6762#section-10.1.
func (a *announcer) Shutdown(ctx context.Context) (err error) {
	err = a.refr.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutting down announcement refresher: %w", err)
	}

	err = a.announce(ctx, 0)
	if err != nil {
		return fmt.Errorf("goodbye: %w", err)
	}

	return nil
}

// announce sends an announcement with the given TTL.  It does nothing if the
// transport has no senders.
func (a *announcer) announce(ctx context.Context, ttl time.Duration) (err error) {
	laddrs := a.transport.Senders()
	if len(laddrs) == 0 {
		a.logger.DebugContext(ctx, "no senders; not announcing")

		return nil
	}

	// The address is a placeholder replaced by the addresses of each outgoing
	// interface.
	addr := laddrs[0].Addr.WithZone("")
	msg, err := dnsmsg.NewAnnouncement(a.host, ttl, []netip.Addr{addr})
	if err != nil {
		return fmt.Errorf("building announcement: %w", err)
	}

	a.transport.SendFiltered(ctx, msg)

	a.logger.DebugContext(ctx, "announced", "host", a.host, "ttl", timeutil.Duration(ttl))

	return nil
}

// newSlogErrorHandler is a convenient wrapper around
// [service.NewSlogErrorHandler].
func newSlogErrorHandler(baseLogger *slog.Logger, prefix string) (h *service.SlogErrorHandler) {
	return service.NewSlogErrorHandler(
		baseLogger.With(slogutil.KeyPrefix, prefix),
		slog.LevelError,
		"refreshing",
	)
}
