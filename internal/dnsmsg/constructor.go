package dnsmsg

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/miekg/dns"
)

// ErrBadHostname is returned by [NewAnnouncement] when the hostname is not a
// valid domain name.
const ErrBadHostname errors.Error = "bad hostname"

// NewAnnouncement returns an unsolicited multicast DNS response announcing
// addrs as the addresses of host.  The records have the cache-flush bit set,
// since the host is the only owner of the name.  host must be a valid domain
// name, and addrs must not be empty.
//
// See https://datatracker.ietf.org/doc/html/rfc6762#section-8.3.
func NewAnnouncement(host string, ttl time.Duration, addrs []netip.Addr) (msg *dns.Msg, err error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("addrs: %w", errors.ErrEmptyValue)
	}

	if _, ok := dns.IsDomainName(host); !ok {
		return nil, fmt.Errorf("host %q: %w", host, ErrBadHostname)
	}

	hdr := dns.RR_Header{
		Name:  dns.Fqdn(host),
		Class: dns.ClassINET | ClassCacheFlush,
		Ttl:   uint32(ttl.Seconds()),
	}

	msg = &dns.Msg{
		MsgHdr: dns.MsgHdr{
			Response:      true,
			Authoritative: true,
		},
		Answer: make([]dns.RR, 0, len(addrs)),
	}

	for _, addr := range addrs {
		msg.Answer = append(msg.Answer, NewAddrRR(hdr, addr))
	}

	return msg, nil
}

// NewQuery returns a multicast DNS query with A and AAAA questions for each of
// names.  The ID of multicast queries is zero.
//
// See https://datatracker.ietf.org/doc/html/rfc6762#section-18.1.
func NewQuery(names []string) (msg *dns.Msg) {
	msg = &dns.Msg{
		Question: make([]dns.Question, 0, 2*len(names)),
	}

	for _, name := range names {
		fqdn := dns.Fqdn(name)
		msg.Question = append(
			msg.Question,
			dns.Question{Name: fqdn, Qtype: dns.TypeA, Qclass: dns.ClassINET},
			dns.Question{Name: fqdn, Qtype: dns.TypeAAAA, Qclass: dns.ClassINET},
		)
	}

	return msg
}
