package wgconf

import (
	"net/netip"
	"testing"

	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsedAddresses(t *testing.T) {
	used := UsedAddresses(Parse(sampleConf), netip.MustParseAddr("10.8.0.1"))

	for _, in := range []string{"10.8.0.1", "10.8.0.2", "10.8.0.3"} {
		assert.True(t, used.Contains(netip.MustParseAddr(in)), in)
	}
	for _, out := range []string{"10.8.0.4", "192.168.10.5"} {
		assert.False(t, used.Contains(netip.MustParseAddr(out)), out)
	}
}

func TestUsedAddresses_NetworkAllowedIPs(t *testing.T) {
	conf := "[Interface]\nAddress = 10.8.0.1/24\n\n[Peer]\nPublicKey = x\nAllowedIPs = 10.8.0.8/30\n"
	used := UsedAddresses(Parse(conf), netip.MustParseAddr("10.8.0.1"))

	assert.False(t, used.Contains(netip.MustParseAddr("10.8.0.8")), "network address")
	assert.True(t, used.Contains(netip.MustParseAddr("10.8.0.9")))
	assert.True(t, used.Contains(netip.MustParseAddr("10.8.0.10")))
	assert.False(t, used.Contains(netip.MustParseAddr("10.8.0.11")), "broadcast address")
}

func TestAllocate(t *testing.T) {
	subnet := netip.MustParsePrefix("10.8.0.0/24")
	server := netip.MustParseAddr("10.8.0.1")

	addr, err := Allocate(subnet, server, UsedAddresses(Parse(sampleConf), server))
	require.NoError(t, err)
	assert.Equal(t, "10.8.0.4", addr.String())
}

func TestAllocate_SkipsServerWithoutInterfaceEntry(t *testing.T) {
	subnet := netip.MustParsePrefix("10.8.0.0/29")
	server := netip.MustParseAddr("10.8.0.1")

	addr, err := Allocate(subnet, server, NewAddressSet())
	require.NoError(t, err)
	assert.Equal(t, "10.8.0.2", addr.String())
}

func TestAllocate_UnmaskedSubnet(t *testing.T) {
	addr, err := Allocate(netip.MustParsePrefix("10.8.0.77/24"), netip.MustParseAddr("10.8.0.1"), NewAddressSet())
	require.NoError(t, err)
	assert.Equal(t, "10.8.0.2", addr.String())
}

func TestAllocate_Exhausted(t *testing.T) {
	subnet := netip.MustParsePrefix("10.8.0.0/30")
	server := netip.MustParseAddr("10.8.0.1")
	used := NewAddressSet()
	used.AddAddr(netip.MustParseAddr("10.8.0.2"))

	_, err := Allocate(subnet, server, used)
	require.Error(t, err)
	assert.Equal(t, fault.ResourceExhausted, fault.KindOf(err))
}

func TestAllocate_NeverReturnsTakenAddress(t *testing.T) {
	subnet := netip.MustParsePrefix("10.8.0.0/28")
	server := netip.MustParseAddr("10.8.0.1")
	used := NewAddressSet()

	seen := map[netip.Addr]bool{}
	for i := 0; i < 13; i++ {
		addr, err := Allocate(subnet, server, used)
		require.NoError(t, err)
		assert.True(t, subnet.Contains(addr))
		assert.NotEqual(t, server, addr)
		assert.False(t, seen[addr])
		seen[addr] = true
		used.AddAddr(addr)
	}
	_, err := Allocate(subnet, server, used)
	assert.Equal(t, fault.ResourceExhausted, fault.KindOf(err))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "10.8.0.2", HostOf("10.8.0.2/32"))
	assert.Equal(t, "10.8.0.2", HostOf(" 10.8.0.2 "))
}
