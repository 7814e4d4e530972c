package wgconf

import (
	"fmt"
	"net/netip"
	"strings"
)

// RenderPeer produces the block appended for a new peer. It starts with a blank line so
// it separates cleanly from the preceding section. The PreSharedKey line is omitted when
// presharedKey is empty; the add-peer script appends it after generating the key remotely.
func RenderPeer(publicKey string, addr netip.Addr, presharedKey string) string {
	var b strings.Builder
	b.WriteString("\n[" + SectionPeer + "]\n")
	fmt.Fprintf(&b, "%s = %s\n", KeyPublicKey, publicKey)
	fmt.Fprintf(&b, "%s = %s\n", KeyAllowedIPs, netip.PrefixFrom(addr, addr.BitLen()))
	if presharedKey != "" {
		fmt.Fprintf(&b, "%s = %s\n", KeyPresharedKey, presharedKey)
	}
	return b.String()
}
