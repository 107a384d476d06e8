// Package mdnstest contains common helpers and test doubles for the multicast
// DNS transport tests.
package mdnstest

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/mdnsmcast/internal/errcoll"
	"github.com/AdguardTeam/mdnsmcast/internal/mcast"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
)

// Timeout is the common timeout for tests.
const Timeout = 1 * time.Second

// Package errcoll

// type check
var _ errcoll.Interface = (*ErrorCollector)(nil)

// ErrorCollector is an [errcoll.Interface] for tests.
type ErrorCollector struct {
	OnCollect func(ctx context.Context, err error)
}

// Collect implements the [errcoll.Interface] interface for *ErrorCollector.
func (c *ErrorCollector) Collect(ctx context.Context, err error) {
	c.OnCollect(ctx, err)
}

// NewErrorCollector returns a new *ErrorCollector all methods of which panic.
func NewErrorCollector() (c *ErrorCollector) {
	return &ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			panic(err)
		},
	}
}

// Package net

// type check
var _ net.PacketConn = (*PacketConn)(nil)

// PacketConn is a [net.PacketConn] for tests.
type PacketConn struct {
	OnClose            func() (err error)
	OnLocalAddr        func() (laddr net.Addr)
	OnReadFrom         func(b []byte) (n int, addr net.Addr, err error)
	OnSetDeadline      func(t time.Time) (err error)
	OnSetReadDeadline  func(t time.Time) (err error)
	OnSetWriteDeadline func(t time.Time) (err error)
	OnWriteTo          func(b []byte, addr net.Addr) (n int, err error)
}

// Close implements the [net.PacketConn] interface for *PacketConn.
func (c *PacketConn) Close() (err error) {
	return c.OnClose()
}

// LocalAddr implements the [net.PacketConn] interface for *PacketConn.
func (c *PacketConn) LocalAddr() (laddr net.Addr) {
	return c.OnLocalAddr()
}

// ReadFrom implements the [net.PacketConn] interface for *PacketConn.
func (c *PacketConn) ReadFrom(b []byte) (n int, addr net.Addr, err error) {
	return c.OnReadFrom(b)
}

// SetDeadline implements the [net.PacketConn] interface for *PacketConn.
func (c *PacketConn) SetDeadline(t time.Time) (err error) {
	return c.OnSetDeadline(t)
}

// SetReadDeadline implements the [net.PacketConn] interface for *PacketConn.
func (c *PacketConn) SetReadDeadline(t time.Time) (err error) {
	return c.OnSetReadDeadline(t)
}

// SetWriteDeadline implements the [net.PacketConn] interface for *PacketConn.
func (c *PacketConn) SetWriteDeadline(t time.Time) (err error) {
	return c.OnSetWriteDeadline(t)
}

// WriteTo implements the [net.PacketConn] interface for *PacketConn.
func (c *PacketConn) WriteTo(b []byte, addr net.Addr) (n int, err error) {
	return c.OnWriteTo(b, addr)
}

// Package mcast

// type check
var _ mcast.ReceiverConn = (*ReceiverConn)(nil)

// ReceiverConn is an [mcast.ReceiverConn] for tests.
type ReceiverConn struct {
	*PacketConn

	OnJoinGroup func(iface *net.Interface) (err error)
}

// JoinGroup implements the [mcast.ReceiverConn] interface for *ReceiverConn.
func (c *ReceiverConn) JoinGroup(iface *net.Interface) (err error) {
	return c.OnJoinGroup(iface)
}

// type check
var _ mcast.ListenConfig = (*ListenConfig)(nil)

// ListenConfig is an [mcast.ListenConfig] for tests.
type ListenConfig struct {
	OnListenReceiver func(
		ctx context.Context,
		fam netutil.AddrFamily,
	) (c mcast.ReceiverConn, err error)
	OnListenSender func(ctx context.Context, la *netiface.LocalAddr) (c net.PacketConn, err error)
}

// ListenReceiver implements the [mcast.ListenConfig] interface for
// *ListenConfig.
func (c *ListenConfig) ListenReceiver(
	ctx context.Context,
	fam netutil.AddrFamily,
) (conn mcast.ReceiverConn, err error) {
	return c.OnListenReceiver(ctx, fam)
}

// ListenSender implements the [mcast.ListenConfig] interface for
// *ListenConfig.
func (c *ListenConfig) ListenSender(
	ctx context.Context,
	la *netiface.LocalAddr,
) (conn net.PacketConn, err error) {
	return c.OnListenSender(ctx, la)
}

// Package netiface

// type check
var _ netiface.NetInterface = (*NetInterface)(nil)

// NetInterface is a [netiface.NetInterface] for tests.
type NetInterface struct {
	OnInterface func() (iface *net.Interface)
	OnAddrs     func() (addrs []netip.Addr, err error)
}

// Interface implements the [netiface.NetInterface] interface for
// *NetInterface.
func (iface *NetInterface) Interface() (netIface *net.Interface) {
	return iface.OnInterface()
}

// Addrs implements the [netiface.NetInterface] interface for *NetInterface.
func (iface *NetInterface) Addrs() (addrs []netip.Addr, err error) {
	return iface.OnAddrs()
}

// NewNetInterface returns a *NetInterface with the given index and name, which
// reports addrs as its addresses.  IPv6 link-local addresses in addrs get the
// name as their zone.
func NewNetInterface(index int, name string, addrs ...netip.Addr) (iface *NetInterface) {
	netIface := &net.Interface{
		Index: index,
		MTU:   1500,
		Name:  name,
		Flags: net.FlagUp | net.FlagMulticast,
	}

	zoned := make([]netip.Addr, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Is6() && addr.IsLinkLocalUnicast() {
			addr = addr.WithZone(name)
		}

		zoned = append(zoned, addr)
	}

	return &NetInterface{
		OnInterface: func() (i *net.Interface) { return netIface },
		OnAddrs: func() (a []netip.Addr, err error) {
			return zoned, nil
		},
	}
}

// type check
var _ netiface.InterfaceStorage = (*InterfaceStorage)(nil)

// InterfaceStorage is a [netiface.InterfaceStorage] for tests.
type InterfaceStorage struct {
	OnInterfaces      func() (ifaces []netiface.NetInterface, err error)
	OnInterfaceByName func(name string) (iface netiface.NetInterface, err error)
}

// Interfaces implements the [netiface.InterfaceStorage] interface for
// *InterfaceStorage.
func (s *InterfaceStorage) Interfaces() (ifaces []netiface.NetInterface, err error) {
	return s.OnInterfaces()
}

// InterfaceByName implements the [netiface.InterfaceStorage] interface for
// *InterfaceStorage.
func (s *InterfaceStorage) InterfaceByName(name string) (iface netiface.NetInterface, err error) {
	return s.OnInterfaceByName(name)
}
