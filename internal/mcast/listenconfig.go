package mcast

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ReceiverConn is a receiving socket bound to the wildcard address of an
// address family.
type ReceiverConn interface {
	net.PacketConn

	// JoinGroup makes the socket receive the multicast DNS group traffic
	// arriving through iface.
	JoinGroup(iface *net.Interface) (err error)
}

// ListenConfig creates the sockets used by [Transport].  Its main
// implementation is [*DefaultListenConfig].
//
// This interface is modeled after [net.ListenConfig].
type ListenConfig interface {
	// ListenReceiver returns a socket bound to the wildcard address of fam on
	// [Port] with address reuse enabled.
	ListenReceiver(ctx context.Context, fam netutil.AddrFamily) (c ReceiverConn, err error)

	// ListenSender returns a socket bound to la on [Port], which is a member of
	// the multicast group of la's family on la's interface, sends multicast
	// traffic through that interface, and has multicast loopback enabled.  If
	// err is not nil, the socket, if any, must already be closed.
	ListenSender(ctx context.Context, la *netiface.LocalAddr) (c net.PacketConn, err error)
}

// ControlConfig is the configuration of socket options.
type ControlConfig struct {
	// RcvBufSize defines the size of socket receive buffer in bytes.  Default
	// is zero (uses system settings).
	RcvBufSize int

	// SndBufSize defines the size of socket send buffer in bytes.  Default is
	// zero (uses system settings).
	SndBufSize int
}

// DefaultListenConfig is the [ListenConfig] that uses the OS sockets.
type DefaultListenConfig struct {
	lc *net.ListenConfig
}

// NewDefaultListenConfig returns a new properly initialized
// *DefaultListenConfig.  If conf is nil, the system settings are used.
func NewDefaultListenConfig(conf *ControlConfig) (lc *DefaultListenConfig) {
	if conf == nil {
		conf = &ControlConfig{}
	}

	return &DefaultListenConfig{
		lc: &net.ListenConfig{
			Control: func(_, _ string, c syscall.RawConn) (err error) {
				return listenControl(conf, c)
			},
		},
	}
}

// type check
var _ ListenConfig = (*DefaultListenConfig)(nil)

// ListenReceiver implements the [ListenConfig] interface for
// *DefaultListenConfig.
func (l *DefaultListenConfig) ListenReceiver(
	ctx context.Context,
	fam netutil.AddrFamily,
) (c ReceiverConn, err error) {
	network, addr := wildcardAddr(fam)
	conn, err := l.lc.ListenPacket(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	rc := &receiverConn{
		PacketConn: conn,
		group:      groupUDPAddr(fam, ""),
	}

	switch fam {
	case netutil.AddrFamilyIPv4:
		rc.join = ipv4.NewPacketConn(conn).JoinGroup
	case netutil.AddrFamilyIPv6:
		rc.join = ipv6.NewPacketConn(conn).JoinGroup
	}

	return rc, nil
}

// receiverConn is the [ReceiverConn] implementation for the family-specific
// packet connections from package golang.org/x/net.
type receiverConn struct {
	net.PacketConn

	join  func(iface *net.Interface, group net.Addr) (err error)
	group *net.UDPAddr
}

// type check
var _ ReceiverConn = (*receiverConn)(nil)

// JoinGroup implements the [ReceiverConn] interface for *receiverConn.
func (c *receiverConn) JoinGroup(iface *net.Interface) (err error) {
	return c.join(iface, c.group)
}

// ListenSender implements the [ListenConfig] interface for
// *DefaultListenConfig.
func (l *DefaultListenConfig) ListenSender(
	ctx context.Context,
	la *netiface.LocalAddr,
) (c net.PacketConn, err error) {
	fam := la.Family()
	addr := netip.AddrPortFrom(la.Addr, Port).String()
	conn, err := l.lc.ListenPacket(ctx, familyNetwork(fam), addr)
	if err != nil {
		return nil, fmt.Errorf("binding to %s: %w", addr, err)
	}

	iface := la.Iface.Interface()
	switch fam {
	case netutil.AddrFamilyIPv4:
		err = setSenderOpts4(ipv4.NewPacketConn(conn), iface)
	case netutil.AddrFamilyIPv6:
		err = setSenderOpts6(ipv6.NewPacketConn(conn), iface)
	}

	if err != nil {
		return nil, errors.WithDeferred(err, conn.Close())
	}

	return conn, nil
}

// setSenderOpts4 joins the IPv4 group on iface and sets the multicast options
// of p.
func setSenderOpts4(p *ipv4.PacketConn, iface *net.Interface) (err error) {
	err = p.JoinGroup(iface, groupUDPAddr(netutil.AddrFamilyIPv4, ""))
	if err != nil {
		return fmt.Errorf("joining group: %w", err)
	}

	err = p.SetMulticastInterface(iface)
	if err != nil {
		return fmt.Errorf("setting multicast interface: %w", err)
	}

	err = p.SetMulticastTTL(multicastTTL)
	if err != nil {
		return fmt.Errorf("setting multicast ttl: %w", err)
	}

	err = p.SetMulticastLoopback(true)
	if err != nil {
		return fmt.Errorf("enabling multicast loopback: %w", err)
	}

	return nil
}

// setSenderOpts6 joins the IPv6 group on iface and sets the multicast options
// of p.
func setSenderOpts6(p *ipv6.PacketConn, iface *net.Interface) (err error) {
	err = p.JoinGroup(iface, groupUDPAddr(netutil.AddrFamilyIPv6, ""))
	if err != nil {
		return fmt.Errorf("joining group: %w", err)
	}

	err = p.SetMulticastInterface(iface)
	if err != nil {
		return fmt.Errorf("setting multicast interface: %w", err)
	}

	err = p.SetMulticastHopLimit(multicastTTL)
	if err != nil {
		return fmt.Errorf("setting multicast hop limit: %w", err)
	}

	err = p.SetMulticastLoopback(true)
	if err != nil {
		return fmt.Errorf("enabling multicast loopback: %w", err)
	}

	return nil
}
