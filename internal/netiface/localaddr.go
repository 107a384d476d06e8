package netiface

import (
	"fmt"
	"net/netip"

	"github.com/AdguardTeam/golibs/netutil"
)

// Families are the address families enabled for multicast.
type Families struct {
	// IPv4, if true, allows using IPv4 addresses.
	IPv4 bool

	// IPv6, if true, allows using link-local IPv6 addresses.
	IPv6 bool
}

// LocalAddr is a local unicast address on a particular network interface.  It
// must not be modified after creation.
type LocalAddr struct {
	// Iface is the interface the address belongs to.  It must not be nil.
	Iface NetInterface

	// Addr is the address itself.  IPv6 link-local addresses have the
	// interface name as their zone.
	Addr netip.Addr
}

// Key is the uniqueness key of a [LocalAddr].
type Key struct {
	addr  netip.Addr
	index int
}

// Key returns the uniqueness key of a, which is the address without its zone
// paired with the interface index.
func (a *LocalAddr) Key() (k Key) {
	return Key{
		addr:  a.Addr.WithZone(""),
		index: a.Iface.Interface().Index,
	}
}

// Family returns the address family of a.
func (a *LocalAddr) Family() (fam netutil.AddrFamily) {
	if a.Addr.Is4() {
		return netutil.AddrFamilyIPv4
	}

	return netutil.AddrFamilyIPv6
}

// type check
var _ fmt.Stringer = (*LocalAddr)(nil)

// String implements the [fmt.Stringer] interface for *LocalAddr.
func (a *LocalAddr) String() (s string) {
	return fmt.Sprintf("%s on %s", a.Addr.WithZone(""), a.Iface.Interface().Name)
}

// LocalAddrs returns the addresses of iface that can be used as source
// addresses of multicast traffic.  IPv4 unicast addresses are always eligible,
// IPv6 ones only if they are link-local.  Addresses of disabled families are
// skipped.
func LocalAddrs(iface NetInterface, fams Families) (las []*LocalAddr, err error) {
	addrs, err := iface.Addrs()
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	for _, addr := range addrs {
		if isEligible(addr, fams) {
			las = append(las, &LocalAddr{
				Iface: iface,
				Addr:  addr,
			})
		}
	}

	return las, nil
}

// isEligible returns true if addr can be used as a multicast source address
// with the given families enabled.
func isEligible(addr netip.Addr, fams Families) (ok bool) {
	switch {
	case !IsUnicast(addr):
		return false
	case addr.Is4():
		return fams.IPv4
	default:
		return fams.IPv6 && addr.IsLinkLocalUnicast()
	}
}

// IsUnicast returns true if addr is a valid, specified, non-multicast address.
// Such addresses are the ones advertised in address records.  IPv4-mapped IPv6
// addresses are not considered unicast; unmap them first.
func IsUnicast(addr netip.Addr) (ok bool) {
	return addr.IsValid() &&
		!addr.IsUnspecified() &&
		!addr.IsMulticast() &&
		!addr.Is4In6()
}

// RecordAddrs returns the current unicast addresses of iface without zones, in
// the order reported by iface.
func RecordAddrs(iface NetInterface) (addrs []netip.Addr, err error) {
	ifaceAddrs, err := iface.Addrs()
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	for _, addr := range ifaceAddrs {
		if IsUnicast(addr) {
			addrs = append(addrs, addr.WithZone(""))
		}
	}

	return addrs, nil
}
