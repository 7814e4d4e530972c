package wgconf

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"strings"
	"text/template"

	"github.com/alessio/shellescape"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/pkg/errors"
)

const (
	markerServerKey = "@@server-public-key"
	markerConfig    = "@@config"
	markerEnd       = "@@end"
	lockWaitSeconds = 30
)

var scriptFuncs = template.FuncMap{"quote": shellescape.Quote}

var snapshotTemplate = template.Must(template.New("snapshot").Funcs(scriptFuncs).Parse(`set -euo pipefail
conf={{ quote .ConfPath }}
iface={{ quote .Interface }}
echo '` + markerServerKey + `'
wg show "$iface" public-key 2>/dev/null || true
echo '` + markerConfig + `'
cat "$conf"
printf '\n` + markerEnd + `\n'
`))

var addPeerTemplate = template.Must(template.New("add-peer").Funcs(scriptFuncs).Parse(`set -euo pipefail
umask 077
conf={{ quote .ConfPath }}
iface={{ quote .Interface }}
allowed={{ quote .AllowedIP }}
peer_block={{ quote .PeerBlock }}
export PEER_PUBLIC_KEY={{ quote .PublicKey }}
export PEER_ALLOWED_IP="$allowed"
export PEER_ADDRESS={{ quote .Address }}

exec 9>>"$conf.lock"
flock -w {{ .LockWaitSeconds }} 9

if awk '{ k = $0; sub(/=.*/, "", k); gsub(/[ \t]/, "", k); if (tolower(k) != "publickey") next; v = substr($0, index($0, "=") + 1); gsub(/^[ \t]+|[ \t]+$/, "", v); if (v == ENVIRON["PEER_PUBLIC_KEY"]) found = 1 } END { exit !found }' "$conf"; then
  echo '{"conflict":"publicKey"}'
  exit 0
fi
if awk '
function ip4(s,    o, n, i) {
  if (split(s, o, ".") != 4) return -1
  n = 0
  for (i = 1; i <= 4; i++) {
    if (o[i] !~ /^[0-9]+$/ || o[i] > 255) return -1
    n = n * 256 + o[i]
  }
  return n
}
{
  k = $0; sub(/=.*/, "", k); gsub(/[ \t]/, "", k)
  if (tolower(k) != "allowedips") next
  v = substr($0, index($0, "=") + 1); split(v, parts, ","); e = parts[1]
  gsub(/^[ \t]+|[ \t]+$/, "", e)
  if (e == ENVIRON["PEER_ALLOWED_IP"] || e == ENVIRON["PEER_ADDRESS"]) { found = 1; next }
  if (split(e, c, "/") != 2) next
  net = ip4(c[1]); a = ip4(ENVIRON["PEER_ADDRESS"]); bits = c[2] + 0
  if (net < 0 || a < 0 || bits >= 32) next
  size = 2 ^ (32 - bits); lo = int(net / size) * size
  if (a < lo || a >= lo + size) next
  if (bits < 31 && (a == lo || a == lo + size - 1)) next
  found = 1
}
END { exit !found }' "$conf"; then
  echo '{"conflict":"address"}'
  exit 0
fi

psk="$(wg genpsk)"
psk_file="$(mktemp)"
trap 'rm -f "$psk_file"' EXIT

printf '%s' "$peer_block" >> "$conf"
if [ -n "$psk" ]; then
  printf '{{ .PresharedKeyLabel }} = %s\n' "$psk" >> "$conf"
fi

wg set "$iface" peer "$PEER_PUBLIC_KEY" allowed-ips "$allowed"
if [ -n "$psk" ]; then
  printf '%s' "$psk" > "$psk_file"
  wg set "$iface" peer "$PEER_PUBLIC_KEY" preshared-key "$psk_file"
fi

server_key="$(wg show "$iface" public-key 2>/dev/null || true)"
printf '{"presharedKey":"%s","serverPublicKey":"%s"}\n' "$psk" "$server_key"
`))

// SnapshotScript reads the server public key and the configuration file without
// modifying anything. Output is framed by markers so truncation is detectable.
func SnapshotScript(confPath, iface string) (string, error) {
	return execute(snapshotTemplate, struct {
		ConfPath  string
		Interface string
	}{confPath, iface})
}

// AddPeerScript appends the peer under an advisory lock on <conf>.lock after checking
// that neither the key nor the address was taken since the snapshot was read. The last
// output line is JSON, decoded by ParseAddPeerOutput.
func AddPeerScript(confPath, iface, publicKey string, addr netip.Addr) (string, error) {
	allowed := netip.PrefixFrom(addr, addr.BitLen()).String()
	return execute(addPeerTemplate, struct {
		ConfPath          string
		Interface         string
		PublicKey         string
		Address           string
		AllowedIP         string
		PeerBlock         string
		PresharedKeyLabel string
		LockWaitSeconds   int
	}{
		ConfPath:          confPath,
		Interface:         iface,
		PublicKey:         publicKey,
		Address:           addr.String(),
		AllowedIP:         allowed,
		PeerBlock:         RenderPeer(publicKey, addr, ""),
		PresharedKeyLabel: KeyPresharedKey,
		LockWaitSeconds:   lockWaitSeconds,
	})
}

func execute(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render %s script", t.Name())
	}
	return buf.String(), nil
}

type Snapshot struct {
	ServerPublicKey string
	Config          *Document
}

// ParseSnapshot decodes SnapshotScript output. Missing markers, including a missing end
// marker from truncated output, are an UnexpectedOutput fault.
func ParseSnapshot(stdout string) (*Snapshot, error) {
	_, rest, found := strings.Cut(stdout, markerServerKey+"\n")
	if !found {
		return nil, fault.New(fault.UnexpectedOutput, "snapshot output has no %s marker", markerServerKey)
	}
	serverKey, rest, found := strings.Cut(rest, markerConfig+"\n")
	if !found {
		return nil, fault.New(fault.UnexpectedOutput, "snapshot output has no %s marker", markerConfig)
	}
	end := strings.LastIndex(rest, "\n"+markerEnd)
	if end < 0 {
		return nil, fault.New(fault.UnexpectedOutput, "snapshot output has no %s marker; output may be truncated", markerEnd)
	}
	return &Snapshot{
		ServerPublicKey: strings.TrimSpace(serverKey),
		Config:          Parse(rest[:end]),
	}, nil
}

const (
	ConflictPublicKey = "publicKey"
	ConflictAddress   = "address"
)

type AddPeerOutput struct {
	PresharedKey    string `json:"presharedKey"`
	ServerPublicKey string `json:"serverPublicKey"`
	Conflict        string `json:"conflict"`
}

// ParseAddPeerOutput decodes the JSON object on the last line of AddPeerScript output.
func ParseAddPeerOutput(stdout string) (*AddPeerOutput, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	out := &AddPeerOutput{}
	if err := json.Unmarshal([]byte(last), out); err != nil {
		return nil, fault.Wrap(fault.UnexpectedOutput, err, "Unable to parse registration output")
	}
	switch out.Conflict {
	case "", ConflictPublicKey, ConflictAddress:
	default:
		return nil, fault.New(fault.UnexpectedOutput, "unknown registration conflict %q", out.Conflict)
	}
	return out, nil
}
