package wgconf

import (
	"net/netip"
	"strings"

	"github.com/chunga-ict/vpnctl/kernel/fault"
)

// AddressSet holds the tunnel addresses already taken. Single addresses are tracked
// exactly; wider allowed-ip networks reserve every host address they contain.
type AddressSet struct {
	addrs    map[netip.Addr]struct{}
	networks []netip.Prefix
}

func NewAddressSet() *AddressSet {
	return &AddressSet{addrs: make(map[netip.Addr]struct{})}
}

// UsedAddresses collects the server address, the Interface Address entries and the first
// AllowedIPs entry of every peer. Entries that do not parse are ignored.
func UsedAddresses(doc *Document, server netip.Addr) *AddressSet {
	set := NewAddressSet()
	set.AddAddr(server)
	if iface := doc.Interface(); iface != nil {
		for _, entry := range strings.Split(iface.Get(KeyAddress), ",") {
			if prefix, err := parsePrefix(entry); err == nil {
				set.AddAddr(prefix.Addr())
			}
		}
	}
	for _, peer := range doc.Peers() {
		if prefix, err := parsePrefix(peer.FirstAllowedIP()); err == nil {
			set.AddPrefix(prefix)
		}
	}
	return set
}

func (s *AddressSet) AddAddr(addr netip.Addr) {
	if addr.IsValid() {
		s.addrs[addr.Unmap()] = struct{}{}
	}
}

func (s *AddressSet) AddPrefix(prefix netip.Prefix) {
	if prefix.IsSingleIP() {
		s.AddAddr(prefix.Addr())
		return
	}
	s.networks = append(s.networks, prefix.Masked())
}

func (s *AddressSet) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	if _, found := s.addrs[addr]; found {
		return true
	}
	for _, network := range s.networks {
		if isHost(network, addr) {
			return true
		}
	}
	return false
}

// Allocate returns the lowest host address of subnet that is neither server nor in used.
func Allocate(subnet netip.Prefix, server netip.Addr, used *AddressSet) (netip.Addr, error) {
	subnet = subnet.Masked()
	for addr := subnet.Addr(); addr.IsValid() && subnet.Contains(addr); addr = addr.Next() {
		if !isHost(subnet, addr) || addr == server || used.Contains(addr) {
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, fault.New(fault.ResourceExhausted, "No available client IP addresses in %s", subnet)
}

// isHost excludes the network address and, for IPv4, the broadcast address unless the
// prefix is a point-to-point /31 (or /127) or a single address.
func isHost(network netip.Prefix, addr netip.Addr) bool {
	if !network.Contains(addr) {
		return false
	}
	bits := network.Addr().BitLen()
	if network.Bits() >= bits-1 {
		return true
	}
	if addr == network.Addr() {
		return false
	}
	if addr.Is4() && addr == broadcast(network) {
		return false
	}
	return true
}

func broadcast(network netip.Prefix) netip.Addr {
	b := network.Addr().As4()
	hostBits := 32 - network.Bits()
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	v |= (1 << hostBits) - 1
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// parsePrefix accepts "10.8.0.2/32" or a bare "10.8.0.2".
func parsePrefix(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		return netip.ParsePrefix(entry)
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// HostOf strips the prefix length from an allowed-ip entry.
func HostOf(entry string) string {
	host, _, _ := strings.Cut(strings.TrimSpace(entry), "/")
	return host
}
