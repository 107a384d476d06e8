//go:build unix

package mcast

import (
	"syscall"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/sys/unix"
)

// setSockOptFunc is a function that sets a socket option on fd.
type setSockOptFunc func(fd int) (err error)

// newSetSockOptFunc returns a socket-option function with the given parameters.
func newSetSockOptFunc(name string, lvl, opt, val int) (o setSockOptFunc) {
	return func(fd int) (err error) {
		err = unix.SetsockoptInt(fd, lvl, opt, val)

		return errors.Annotate(err, "setting %s: %w", name)
	}
}

// listenControl is used as a [net.ListenConfig.Control] function to set the
// SO_REUSEADDR, SO_REUSEPORT, SO_SNDBUF, and SO_RCVBUF socket options on all
// sockets of the transport.  Several processes on the same host may use the
// multicast DNS port at once, so address reuse is always enabled.  conf must
// not be nil.
func listenControl(conf *ControlConfig, c syscall.RawConn) (err error) {
	opts := []setSockOptFunc{
		newSetSockOptFunc("SO_REUSEADDR", unix.SOL_SOCKET, unix.SO_REUSEADDR, 1),
		newSetSockOptFunc("SO_REUSEPORT", unix.SOL_SOCKET, unix.SO_REUSEPORT, 1),
	}

	if conf.SndBufSize > 0 {
		opts = append(
			opts,
			newSetSockOptFunc("SO_SNDBUF", unix.SOL_SOCKET, unix.SO_SNDBUF, conf.SndBufSize),
		)
	}

	if conf.RcvBufSize > 0 {
		opts = append(
			opts,
			newSetSockOptFunc("SO_RCVBUF", unix.SOL_SOCKET, unix.SO_RCVBUF, conf.RcvBufSize),
		)
	}

	var opErr error
	err = c.Control(func(fd uintptr) {
		fdInt := int(fd)
		for _, opt := range opts {
			opErr = opt(fdInt)
			if opErr != nil {
				return
			}
		}
	})

	return errors.WithDeferred(opErr, err)
}

// isAddrNotAvail returns true if err means that the local address can't be
// bound to, for example because it's still tentative or has just been removed.
func isAddrNotAvail(err error) (ok bool) {
	return errors.Is(err, unix.EADDRNOTAVAIL)
}
