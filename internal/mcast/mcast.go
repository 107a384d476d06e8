// Package mcast contains the dual-stack multicast DNS transport.  It opens a
// receiving socket per address family and a sending socket per eligible local
// address, and fans outgoing datagrams out over all sending sockets.
package mcast

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/netutil"
)

// Port is the UDP port of multicast DNS.
const Port uint16 = 5353

// Multicast DNS group addresses.
var (
	GroupIPv4 = netip.MustParseAddr("224.0.0.251")
	GroupIPv6 = netip.MustParseAddr("ff02::fb")
)

// DefaultReceiveBufferSize is the default size of the buffers used to read
// incoming datagrams.  It is the largest multicast DNS message allowed on a
// jumbo-frame link.
const DefaultReceiveBufferSize = 9000

// multicastTTL is the IPv4 TTL and the IPv6 hop limit of the outgoing packets.
const multicastTTL = 255

// groupAddr returns the group address for fam.  It panics if fam is not
// supported.
func groupAddr(fam netutil.AddrFamily) (addr netip.Addr) {
	switch fam {
	case netutil.AddrFamilyIPv4:
		return GroupIPv4
	case netutil.AddrFamilyIPv6:
		return GroupIPv6
	default:
		panic(fmt.Errorf("mcast: unsupported addr fam %s", fam))
	}
}

// groupUDPAddr returns the destination address of the multicast group of fam.
// zone is only used for IPv6.
func groupUDPAddr(fam netutil.AddrFamily, zone string) (addr *net.UDPAddr) {
	addr = &net.UDPAddr{
		IP:   groupAddr(fam).AsSlice(),
		Port: int(Port),
	}

	if fam == netutil.AddrFamilyIPv6 {
		addr.Zone = zone
	}

	return addr
}

// wildcardAddr returns the address string on which the receiving socket of
// fam listens.  It panics if fam is not supported.
func wildcardAddr(fam netutil.AddrFamily) (network, addr string) {
	switch fam {
	case netutil.AddrFamilyIPv4:
		return "udp4", netutil.JoinHostPort(netip.IPv4Unspecified().String(), Port)
	case netutil.AddrFamilyIPv6:
		return "udp6", netutil.JoinHostPort(netip.IPv6Unspecified().String(), Port)
	default:
		panic(fmt.Errorf("mcast: unsupported addr fam %s", fam))
	}
}

// familyNetwork returns the UDP network name for fam.  It panics if fam is not
// supported.
func familyNetwork(fam netutil.AddrFamily) (network string) {
	network, _ = wildcardAddr(fam)

	return network
}
