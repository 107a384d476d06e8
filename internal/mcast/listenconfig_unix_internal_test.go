//go:build unix

package mcast

import (
	"context"
	"syscall"
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// syscallConner is the interface of the sockets which can provide the raw
// connection.
type syscallConner interface {
	SyscallConn() (c syscall.RawConn, err error)
}

func TestDefaultListenConfig_control(t *testing.T) {
	const (
		sndBufSize = 10000
		rcvBufSize = 20000
	)

	lc := NewDefaultListenConfig(&ControlConfig{
		SndBufSize: sndBufSize,
		RcvBufSize: rcvBufSize,
	})
	require.NotNil(t, lc)

	testCases := []struct {
		name    string
		network string
		addr    string
	}{{
		name:    "ipv4",
		network: "udp4",
		addr:    "127.0.0.1:0",
	}, {
		name:    "ipv6",
		network: "udp6",
		addr:    "[::1]:0",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := lc.lc.ListenPacket(context.Background(), tc.network, tc.addr)
			if errors.Is(err, syscall.EADDRNOTAVAIL) {
				// Some CI machines have IPv6 disabled.
				t.Skipf("%s seems to not be supported: %s", tc.name, err)
			}

			require.NoError(t, err)
			testutil.CleanupAndRequireSuccess(t, c.Close)

			sc := testutil.RequireTypeAssert[syscallConner](t, c)
			rc, err := sc.SyscallConn()
			require.NoError(t, err)

			err = rc.Control(func(fd uintptr) {
				for _, opt := range []int{unix.SO_REUSEADDR, unix.SO_REUSEPORT} {
					val, opErr := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, opt)
					require.NoError(t, opErr)

					assert.NotEqual(t, 0, val)
				}

				val, opErr := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF)
				require.NoError(t, opErr)

				assert.LessOrEqual(t, sndBufSize, val)

				val, opErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
				require.NoError(t, opErr)

				assert.LessOrEqual(t, rcvBufSize, val)
			})
			require.NoError(t, err)
		})
	}
}

func TestIsAddrNotAvail(t *testing.T) {
	assert.True(t, isAddrNotAvail(errors.Annotate(unix.EADDRNOTAVAIL, "binding: %w")))
	assert.False(t, isAddrNotAvail(unix.EADDRINUSE))
	assert.False(t, isAddrNotAvail(errors.Error("test error")))
}
