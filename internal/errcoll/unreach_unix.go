//go:build unix

package errcoll

import (
	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/sys/unix"
)

// isNetUnreachable returns true if err means that the destination network or
// host can't be reached from the current interface.
func isNetUnreachable(err error) (ok bool) {
	return errors.Is(err, unix.ENETUNREACH) || errors.Is(err, unix.EHOSTUNREACH)
}
