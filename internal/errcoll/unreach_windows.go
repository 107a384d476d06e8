//go:build windows

package errcoll

import (
	"syscall"

	"github.com/AdguardTeam/golibs/errors"
)

// Windows Sockets error codes.
const (
	errNetUnreach  syscall.Errno = 10051
	errHostUnreach syscall.Errno = 10065
)

// isNetUnreachable returns true if err means that the destination network or
// host can't be reached from the current interface.
func isNetUnreachable(err error) (ok bool) {
	return errors.Is(err, errNetUnreach) || errors.Is(err, errHostUnreach)
}
