package wgconf

import (
	"strings"
)

const (
	SectionInterface = "Interface"
	SectionPeer      = "Peer"

	KeyPublicKey    = "PublicKey"
	KeyAllowedIPs   = "AllowedIPs"
	KeyPresharedKey = "PreSharedKey"
	KeyAddress      = "Address"
)

// Document is a WireGuard configuration file split into sections. Raw lines are kept so
// that String reproduces the input byte for byte.
type Document struct {
	Preamble []string
	Sections []*Section
}

// Section is one [Type] block. Values are keyed by lowercased name; when a key repeats the
// last occurrence wins. Lines holds the header and every following line verbatim.
type Section struct {
	Type   string
	Values map[string]string
	Lines  []string
}

func Parse(text string) *Document {
	doc := &Document{}
	var current *Section
	for _, raw := range splitLines(text) {
		stripped := strings.TrimSpace(raw)
		if strings.HasPrefix(stripped, "[") && strings.HasSuffix(stripped, "]") {
			current = &Section{
				Type:   strings.TrimSpace(strings.Trim(stripped, "[]")),
				Values: make(map[string]string),
				Lines:  []string{raw},
			}
			doc.Sections = append(doc.Sections, current)
			continue
		}
		if current == nil {
			doc.Preamble = append(doc.Preamble, raw)
			continue
		}
		current.Lines = append(current.Lines, raw)
		if stripped == "" || strings.HasPrefix(stripped, "#") || strings.HasPrefix(stripped, ";") {
			continue
		}
		if key, value, found := strings.Cut(stripped, "="); found {
			current.Values[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
	}
	return doc
}

// splitLines splits after each newline, keeping the terminators.
func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (d *Document) String() string {
	var b strings.Builder
	for _, line := range d.Preamble {
		b.WriteString(line)
	}
	for _, s := range d.Sections {
		for _, line := range s.Lines {
			b.WriteString(line)
		}
	}
	return b.String()
}

func (d *Document) Interface() *Section {
	for _, s := range d.Sections {
		if s.Is(SectionInterface) {
			return s
		}
	}
	return nil
}

func (d *Document) Peers() []*Section {
	var peers []*Section
	for _, s := range d.Sections {
		if s.Is(SectionPeer) {
			peers = append(peers, s)
		}
	}
	return peers
}

// FindPeer returns the last peer section whose PublicKey equals publicKey.
func (d *Document) FindPeer(publicKey string) *Section {
	var found *Section
	for _, p := range d.Peers() {
		if p.Get(KeyPublicKey) == publicKey {
			found = p
		}
	}
	return found
}

func (s *Section) Is(sectionType string) bool {
	return strings.EqualFold(s.Type, sectionType)
}

func (s *Section) Get(key string) string {
	return s.Values[strings.ToLower(key)]
}

func (s *Section) Lookup(key string) (string, bool) {
	v, found := s.Values[strings.ToLower(key)]
	return v, found
}

// FirstAllowedIP returns the first AllowedIPs entry as written, e.g. "10.8.0.2/32".
func (s *Section) FirstAllowedIP() string {
	first, _, _ := strings.Cut(s.Get(KeyAllowedIPs), ",")
	return strings.TrimSpace(first)
}
