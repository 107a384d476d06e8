package cmd

import (
	"testing"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/mdnsmcast/internal/mdnstest"
	"github.com/AdguardTeam/mdnsmcast/internal/netiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBuilder returns a builder for tests with the interface storage
// replaced by strg.
func newTestBuilder(tb testing.TB, c *configuration, strg netiface.InterfaceStorage) (b *builder) {
	tb.Helper()

	b = newBuilder(&builderConfig{
		envs:       newValidEnvironment(),
		conf:       c,
		baseLogger: slogutil.NewDiscardLogger(),
		errColl:    mdnstest.NewErrorCollector(),
	})
	b.ifaceStorage = strg

	return b
}

func TestBuilder_initInterfaces(t *testing.T) {
	const testError errors.Error = "test error"

	eth0 := mdnstest.NewNetInterface(1, "eth0")
	eth1 := mdnstest.NewNetInterface(2, "eth1")

	strg := &mdnstest.InterfaceStorage{
		OnInterfaces: func() (ifaces []netiface.NetInterface, err error) {
			return []netiface.NetInterface{eth0, eth1}, nil
		},
		OnInterfaceByName: func(name string) (iface netiface.NetInterface, err error) {
			switch name {
			case "eth0":
				return eth0, nil
			case "eth1":
				return eth1, nil
			default:
				return nil, testError
			}
		},
	}

	t.Run("all", func(t *testing.T) {
		b := newTestBuilder(t, newValidConfig(), strg)

		err := b.initInterfaces(testutil.ContextWithTimeout(t, mdnstest.Timeout))
		require.NoError(t, err)

		assert.Equal(t, []netiface.NetInterface{eth0, eth1}, b.ifaces)
	})

	t.Run("named", func(t *testing.T) {
		c := newValidConfig()
		c.Transport.Interfaces = []string{"eth1"}
		b := newTestBuilder(t, c, strg)

		err := b.initInterfaces(testutil.ContextWithTimeout(t, mdnstest.Timeout))
		require.NoError(t, err)

		assert.Equal(t, []netiface.NetInterface{eth1}, b.ifaces)
	})

	t.Run("unknown", func(t *testing.T) {
		c := newValidConfig()
		c.Transport.Interfaces = []string{"eth0", "wlan9"}
		b := newTestBuilder(t, c, strg)

		err := b.initInterfaces(testutil.ContextWithTimeout(t, mdnstest.Timeout))
		assert.ErrorIs(t, err, testError)
		testutil.AssertErrorMsg(t, `getting interface "wlan9": test error`, err)
	})
}
