// Package dnsmsg contains common constants, functions, and types for
// inspecting and constructing multicast DNS messages.
package dnsmsg

import (
	"github.com/miekg/dns"
)

// Class is a semantic alias for uint16 values when they are used as a DNS class
// code.
type Class = uint16

// ClassCacheFlush is the cache-flush bit of the class field of multicast DNS
// resource records.
//
// See https://datatracker.ietf.org/doc/html/rfc6762#section-10.2.
const ClassCacheFlush Class = 1 << 15

// IsAddrRR returns true if rr is an A or an AAAA resource record.
func IsAddrRR(rr dns.RR) (ok bool) {
	switch rr.(type) {
	case *dns.A, *dns.AAAA:
		return true
	default:
		return false
	}
}
