package dnsmsg

import (
	"net/netip"

	"github.com/miekg/dns"
)

// FirstAddrHeader returns the header of the first A or AAAA resource record of
// msg.  The additional section is searched first, then the answer section.  ok
// is false if msg has no address records.
func FirstAddrHeader(msg *dns.Msg) (hdr dns.RR_Header, ok bool) {
	for _, sec := range [][]dns.RR{msg.Extra, msg.Answer} {
		for _, rr := range sec {
			if IsAddrRR(rr) {
				return *rr.Header(), true
			}
		}
	}

	return dns.RR_Header{}, false
}

// WithAddrs returns a shallow copy of msg in which the A and AAAA resource
// records of the answer and additional sections are replaced with records for
// addrs.  Replacement records are only added to the sections that had address
// records.  The owner name, class, and TTL of the new records are taken from
// hdr.  msg is not modified, and the sections of the copy that have no address
// records share their slices with msg.
func WithAddrs(msg *dns.Msg, hdr dns.RR_Header, addrs []netip.Addr) (cp *dns.Msg) {
	cp = &dns.Msg{}
	*cp = *msg

	cp.Answer = replaceAddrRRs(msg.Answer, hdr, addrs)
	cp.Extra = replaceAddrRRs(msg.Extra, hdr, addrs)

	return cp
}

// replaceAddrRRs returns sec with all address records removed and the records
// for addrs appended.  If sec has no address records, it is returned as is.
func replaceAddrRRs(sec []dns.RR, hdr dns.RR_Header, addrs []netip.Addr) (res []dns.RR) {
	n := 0
	for _, rr := range sec {
		if IsAddrRR(rr) {
			n++
		}
	}

	if n == 0 {
		return sec
	}

	res = make([]dns.RR, 0, len(sec)-n+len(addrs))
	for _, rr := range sec {
		if !IsAddrRR(rr) {
			res = append(res, rr)
		}
	}

	for _, addr := range addrs {
		res = append(res, NewAddrRR(hdr, addr))
	}

	return res
}

// NewAddrRR returns a new A resource record if addr is an IPv4 address and an
// AAAA one otherwise.  The name, class, and TTL are taken from hdr; the type
// and the data length are set by NewAddrRR.  addr must be valid.
func NewAddrRR(hdr dns.RR_Header, addr netip.Addr) (rr dns.RR) {
	addr = addr.Unmap()
	hdr.Rdlength = 0

	if addr.Is4() {
		hdr.Rrtype = dns.TypeA
		a := newA(addr)
		a.Hdr = hdr

		return a
	}

	hdr.Rrtype = dns.TypeAAAA
	aaaa := newAAAA(addr)
	aaaa.Hdr = hdr

	return aaaa
}

// newA constructs a new resource record of type A.  callers must set rr.Hdr.
// ip must be an IPv4 address.
func newA(ip netip.Addr) (rr *dns.A) {
	data := ip.As4()

	return &dns.A{
		A: data[:],
	}
}

// newAAAA constructs a new resource record of type AAAA.  callers must set
// rr.Hdr.  ip must be an IPv6 address.
func newAAAA(ip netip.Addr) (rr *dns.AAAA) {
	data := ip.As16()

	return &dns.AAAA{
		AAAA: data[:],
	}
}
