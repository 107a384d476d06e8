package mcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/mdnsmcast/internal/dnsmsg"
	"github.com/AdguardTeam/mdnsmcast/internal/errcoll"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"github.com/AdguardTeam/mdnsmcast/internal/optslog"
	"github.com/miekg/dns"
)

// Send writes b to the multicast group through every sender.  Errors are
// reported to the error collector and don't prevent sending through other
// senders.  Send returns once all writes have been attempted.
func (t *Transport) Send(ctx context.Context, b []byte) {
	t.fanOut(ctx, func(ctx context.Context, s *sender) (err error) {
		return t.write(ctx, s, b)
	})
}

// SendFiltered packs msg and writes it to the multicast group through every
// sender.  If msg has address records, the A and AAAA records of its answer
// and additional sections are replaced with the current addresses of the
// sender's interface, so that each link only learns the addresses reachable
// on it.  msg itself is not modified, but it must not be modified
// concurrently.  Errors are handled as in [Transport.Send].
func (t *Transport) SendFiltered(ctx context.Context, msg *dns.Msg) {
	hdr, ok := dnsmsg.FirstAddrHeader(msg)
	if !ok {
		b, err := msg.Pack()
		if err != nil {
			errcoll.Collect(ctx, t.errColl, t.logger, "packing message", err)

			return
		}

		t.Send(ctx, b)

		return
	}

	t.fanOut(ctx, func(ctx context.Context, s *sender) (err error) {
		return t.writeFiltered(ctx, s, msg, hdr)
	})
}

// writeFiltered writes the copy of msg with the addresses of the interface of
// s to its group.
func (t *Transport) writeFiltered(
	ctx context.Context,
	s *sender,
	msg *dns.Msg,
	hdr dns.RR_Header,
) (err error) {
	addrs, err := netiface.RecordAddrs(s.laddr.Iface)
	if err != nil {
		return fmt.Errorf("getting record addrs: %w", err)
	}

	b, err := dnsmsg.WithAddrs(msg, hdr, addrs).Pack()
	if err != nil {
		return fmt.Errorf("packing message: %w", err)
	}

	return t.write(ctx, s, b)
}

// fanOut calls f for every sender concurrently and waits for all of them to
// return.  Errors returned by f are reported and counted.
func (t *Transport) fanOut(ctx context.Context, f func(ctx context.Context, s *sender) (err error)) {
	senders := t.senders.all()
	if t.closed.Load() || len(senders) == 0 {
		t.logger.DebugContext(ctx, "no senders")

		return
	}

	wg := &sync.WaitGroup{}
	for _, s := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer slogutil.RecoverAndLog(ctx, t.logger)

			err := f(ctx, s)
			if err != nil {
				t.metrics.IncrementSendErrors(ctx, s.fam)
				errcoll.Collect(ctx, t.errColl, t.logger, "sending", fmt.Errorf(
					"via %s: %w",
					s.laddr,
					err,
				))

				return
			}

			t.metrics.IncrementSent(ctx, s.fam)
		}()
	}

	wg.Wait()
}

// write writes b to the group of s.
func (t *Transport) write(ctx context.Context, s *sender, b []byte) (err error) {
	start := time.Now()
	_, err = s.conn.WriteTo(b, s.group)
	t.metrics.ObserveWriteDuration(ctx, time.Since(start))

	if err != nil {
		return fmt.Errorf("writing to %s: %w", s.group, err)
	}

	optslog.Trace3(ctx, t.logger, "sent", "laddr", s.laddr.Addr, "group", s.group, "size", len(b))

	return nil
}
