package mcast

import (
	"net"
	"testing"

	"github.com/AdguardTeam/golibs/netutil"
	"github.com/stretchr/testify/assert"
)

func TestGroupUDPAddr(t *testing.T) {
	testCases := []struct {
		want *net.UDPAddr
		name string
		fam  netutil.AddrFamily
		zone string
	}{{
		want: &net.UDPAddr{IP: net.IP{224, 0, 0, 251}, Port: 5353},
		name: "ipv4",
		fam:  netutil.AddrFamilyIPv4,
		zone: "eth0",
	}, {
		want: &net.UDPAddr{IP: net.ParseIP("ff02::fb"), Port: 5353, Zone: "eth0"},
		name: "ipv6",
		fam:  netutil.AddrFamilyIPv6,
		zone: "eth0",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, groupUDPAddr(tc.fam, tc.zone))
		})
	}

	assert.Panics(t, func() {
		_ = groupUDPAddr(netutil.AddrFamilyNone, "")
	})
}

func TestWildcardAddr(t *testing.T) {
	network, addr := wildcardAddr(netutil.AddrFamilyIPv4)
	assert.Equal(t, "udp4", network)
	assert.Equal(t, "0.0.0.0:5353", addr)

	network, addr = wildcardAddr(netutil.AddrFamilyIPv6)
	assert.Equal(t, "udp6", network)
	assert.Equal(t, "[::]:5353", addr)
}
