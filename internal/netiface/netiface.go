// Package netiface contains the network-interface abstractions used to find the
// local addresses suitable for link-local multicast.
package netiface

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/netutil"
)

// NetInterface represents a network interface (aka device).
type NetInterface interface {
	// Interface returns the OS information about the interface: its name,
	// index, and flags.  iface must not be nil.
	Interface() (iface *net.Interface)

	// Addrs returns the current unicast addresses of the interface.  IPv6
	// link-local addresses must have the interface name as their zone.
	Addrs() (addrs []netip.Addr, err error)
}

// type check
var _ NetInterface = osInterface{}

// osInterface is a wrapper around [*net.Interface] that implements the
// [NetInterface] interface.
type osInterface struct {
	iface *net.Interface
}

// NewOSInterface returns a [NetInterface] that takes its addresses from the OS.
// iface must not be nil.
func NewOSInterface(iface *net.Interface) (ni NetInterface) {
	return osInterface{
		iface: iface,
	}
}

// Interface implements the [NetInterface] interface for osInterface.
func (osIface osInterface) Interface() (iface *net.Interface) { return osIface.iface }

// Addrs implements the [NetInterface] interface for osInterface.
func (osIface osInterface) Addrs() (addrs []netip.Addr, err error) {
	name := osIface.iface.Name
	ifaceAddrs, err := osIface.iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("getting addrs for interface %s: %w", name, err)
	}

	addrs = make([]netip.Addr, 0, len(ifaceAddrs))
	for _, a := range ifaceAddrs {
		var addr netip.Addr
		switch a := a.(type) {
		case *net.IPNet:
			var subnet netip.Prefix
			subnet, err = netutil.IPNetToPrefixNoMapped(a)
			if err != nil {
				return nil, fmt.Errorf("converting addr for interface %s: %w", name, err)
			}

			addr = subnet.Addr()
		case *net.IPAddr:
			var ok bool
			addr, ok = netip.AddrFromSlice(a.IP)
			if !ok {
				return nil, fmt.Errorf("bad ip %v for interface %s", a.IP, name)
			}

			addr = addr.Unmap()
		default:
			return nil, fmt.Errorf("addr for interface %s is %T, not *net.IPNet", name, a)
		}

		if addr.Is6() && addr.IsLinkLocalUnicast() {
			addr = addr.WithZone(name)
		}

		addrs = append(addrs, addr)
	}

	return addrs, nil
}

// InterfaceStorage is the interface for storages of network interfaces (aka
// devices).  Its main implementation is [DefaultInterfaceStorage].
type InterfaceStorage interface {
	// Interfaces returns the interfaces which are up and can be used for
	// multicast.
	Interfaces() (ifaces []NetInterface, err error)

	// InterfaceByName returns the interface with the given name.
	InterfaceByName(name string) (iface NetInterface, err error)
}

// type check
var _ InterfaceStorage = DefaultInterfaceStorage{}

// DefaultInterfaceStorage is the storage that uses the OS's network interfaces.
type DefaultInterfaceStorage struct{}

// multicastFlags are the flags an interface must have to be returned by
// [DefaultInterfaceStorage.Interfaces].
const multicastFlags = net.FlagUp | net.FlagMulticast

// Interfaces implements the [InterfaceStorage] interface for
// DefaultInterfaceStorage.
func (DefaultInterfaceStorage) Interfaces() (ifaces []NetInterface, err error) {
	netIfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	for i := range netIfaces {
		netIface := &netIfaces[i]
		if netIface.Flags&multicastFlags != multicastFlags {
			continue
		}

		ifaces = append(ifaces, NewOSInterface(netIface))
	}

	return ifaces, nil
}

// InterfaceByName implements the [InterfaceStorage] interface for
// DefaultInterfaceStorage.
func (DefaultInterfaceStorage) InterfaceByName(name string) (iface NetInterface, err error) {
	netIface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %s: %w", name, err)
	}

	return NewOSInterface(netIface), nil
}
