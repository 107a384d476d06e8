//go:build windows

package mcast

import (
	"syscall"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/sys/windows"
)

// errAddrNotAvail is the WSAEADDRNOTAVAIL error code.
const errAddrNotAvail syscall.Errno = 10049

// listenControl is used as a [net.ListenConfig.Control] function.  Windows
// only supports SO_REUSEADDR and the buffer sizes.  conf must not be nil.
func listenControl(conf *ControlConfig, c syscall.RawConn) (err error) {
	var opErr error
	err = c.Control(func(fd uintptr) {
		h := windows.Handle(fd)
		opErr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
		if opErr != nil {
			opErr = errors.Annotate(opErr, "setting SO_REUSEADDR: %w")

			return
		}

		if conf.SndBufSize > 0 {
			opErr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_SNDBUF, conf.SndBufSize)
			if opErr != nil {
				opErr = errors.Annotate(opErr, "setting SO_SNDBUF: %w")

				return
			}
		}

		if conf.RcvBufSize > 0 {
			opErr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_RCVBUF, conf.RcvBufSize)
			opErr = errors.Annotate(opErr, "setting SO_RCVBUF: %w")
		}
	})

	return errors.WithDeferred(opErr, err)
}

// isAddrNotAvail returns true if err means that the local address can't be
// bound to.
func isAddrNotAvail(err error) (ok bool) {
	return errors.Is(err, errAddrNotAvail)
}
