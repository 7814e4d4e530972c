package peer

import (
	"context"
	"net/netip"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/chunga-ict/vpnctl/kernel/remote"
	"github.com/chunga-ict/vpnctl/kernel/wgconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

var (
	peerKeyPattern = regexp.MustCompile(`(?m)^export PEER_PUBLIC_KEY=(\S+)$`)
	allowedPattern = regexp.MustCompile(`(?m)^allowed=(\S+)$`)
)

// fakeHost executes the registration scripts against an in-memory configuration file.
type fakeHost struct {
	conf      string
	serverKey string
	snapshots int
	additions int

	// beforeAdd runs ahead of each add-peer script, simulating a concurrent writer
	beforeAdd func(h *fakeHost)
	override  *remote.Result
}

func (h *fakeHost) Run(_ context.Context, script string, _ time.Duration) (*remote.Result, error) {
	if h.override != nil {
		return h.override, nil
	}
	if strings.Contains(script, "@@server-public-key") {
		h.snapshots++
		return &remote.Result{
			Status: remote.StatusSuccess,
			Stdout: "@@server-public-key\n" + h.serverKey + "\n@@config\n" + h.conf + "\n@@end\n",
		}, nil
	}

	if h.beforeAdd != nil {
		h.beforeAdd(h)
	}
	publicKey := peerKeyPattern.FindStringSubmatch(script)[1]
	allowed := allowedPattern.FindStringSubmatch(script)[1]
	doc := wgconf.Parse(h.conf)
	if doc.FindPeer(publicKey) != nil {
		return &remote.Result{Status: remote.StatusSuccess, Stdout: `{"conflict":"publicKey"}`}, nil
	}
	for _, p := range doc.Peers() {
		if p.FirstAllowedIP() == allowed {
			return &remote.Result{Status: remote.StatusSuccess, Stdout: `{"conflict":"address"}`}, nil
		}
	}

	h.additions++
	psk := mustKey()
	h.conf += wgconf.RenderPeer(publicKey, netip.MustParsePrefix(allowed).Addr(), psk)
	return &remote.Result{
		Status: remote.StatusSuccess,
		Stdout: `{"presharedKey":"` + psk + `","serverPublicKey":"` + h.serverKey + `"}` + "\n",
	}, nil
}

func mustKey() string {
	key, err := wgtypes.GenerateKey()
	if err != nil {
		panic(err)
	}
	return key.String()
}

func mustPublicKey() string {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}
	return key.PublicKey().String()
}

func newHost() *fakeHost {
	return &fakeHost{
		conf:      "[Interface]\nAddress = 10.8.0.1/24\nListenPort = 51820\n",
		serverKey: mustPublicKey(),
	}
}

func newRegistrar(t *testing.T, exec remote.Executor, cidr string) *Registrar {
	r, err := NewRegistrar(exec, config.RegistrarConfig{
		ClientSubnetCidr:      cidr,
		ServerAddress:         "10.8.0.1",
		Interface:             "wg0",
		ConfPath:              "/etc/wireguard/wg0.conf",
		CommandTimeoutSeconds: 60,
		PollIntervalSeconds:   2,
		Executor:              "ssm",
	})
	require.NoError(t, err)
	return r
}

func TestRegister_NewPeer(t *testing.T) {
	host := newHost()
	key := mustPublicKey()

	result, err := newRegistrar(t, host, "10.8.0.0/24").Register(context.Background(), "  "+key+"\n")
	require.NoError(t, err)
	assert.False(t, result.AlreadyExists)
	assert.Equal(t, "10.8.0.2", *result.AssignedIp)
	assert.Equal(t, key, result.PublicKey)
	assert.Equal(t, host.serverKey, result.ServerPublicKey)
	require.NotNil(t, result.PresharedKey)
	assert.Equal(t, 1, host.additions)

	peer := wgconf.Parse(host.conf).FindPeer(key)
	require.NotNil(t, peer)
	assert.Equal(t, "10.8.0.2/32", peer.FirstAllowedIP())
	assert.Equal(t, *result.PresharedKey, peer.Get(wgconf.KeyPresharedKey))
}

func TestRegister_ExistingPeerWithoutAllowedIPs(t *testing.T) {
	host := newHost()
	key := mustPublicKey()
	host.conf += "\n[Peer]\nPublicKey = " + key + "\n"

	result, err := newRegistrar(t, host, "10.8.0.0/24").Register(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, result.AlreadyExists)
	assert.Nil(t, result.AssignedIp)
	assert.Zero(t, host.additions)
}

func TestRegister_SameKeyTwice(t *testing.T) {
	host := newHost()
	registrar := newRegistrar(t, host, "10.8.0.0/24")
	key := mustPublicKey()

	first, err := registrar.Register(context.Background(), key)
	require.NoError(t, err)
	conf := host.conf

	second, err := registrar.Register(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, second.AlreadyExists)
	assert.Equal(t, *first.AssignedIp, *second.AssignedIp)
	assert.Equal(t, *first.PresharedKey, *second.PresharedKey)
	assert.Equal(t, conf, host.conf)
	assert.Equal(t, 1, host.additions)
}

func TestRegister_AllocationsAreDistinct(t *testing.T) {
	host := newHost()
	registrar := newRegistrar(t, host, "10.8.0.0/28")
	subnet := netip.MustParsePrefix("10.8.0.0/28")

	seen := map[string]bool{}
	for i := 0; i < 13; i++ {
		result, err := registrar.Register(context.Background(), mustPublicKey())
		require.NoError(t, err)
		require.NotNil(t, result.AssignedIp)
		addr := netip.MustParseAddr(*result.AssignedIp)
		assert.True(t, subnet.Contains(addr))
		assert.NotEqual(t, "10.8.0.1", *result.AssignedIp)
		assert.False(t, seen[*result.AssignedIp])
		seen[*result.AssignedIp] = true
	}

	_, err := registrar.Register(context.Background(), mustPublicKey())
	require.Error(t, err)
	assert.Equal(t, fault.ResourceExhausted, fault.KindOf(err))
}

func TestRegister_ConcurrentWriterTakesAddress(t *testing.T) {
	host := newHost()
	intruder := mustPublicKey()
	host.beforeAdd = func(h *fakeHost) {
		h.beforeAdd = nil
		h.conf += wgconf.RenderPeer(intruder, netip.MustParseAddr("10.8.0.2"), "")
	}

	result, err := newRegistrar(t, host, "10.8.0.0/24").Register(context.Background(), mustPublicKey())
	require.NoError(t, err)
	assert.Equal(t, "10.8.0.3", *result.AssignedIp)
	assert.Equal(t, 2, host.snapshots)
}

func TestRegister_ConcurrentWriterSameKey(t *testing.T) {
	host := newHost()
	key := mustPublicKey()
	host.beforeAdd = func(h *fakeHost) {
		h.beforeAdd = nil
		h.conf += wgconf.RenderPeer(key, netip.MustParseAddr("10.8.0.2"), "")
	}

	result, err := newRegistrar(t, host, "10.8.0.0/24").Register(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, result.AlreadyExists)
	assert.Equal(t, "10.8.0.2", *result.AssignedIp)
	assert.Nil(t, result.PresharedKey)
}

func TestRegister_ConflictsExhaustAttempts(t *testing.T) {
	host := newHost()
	host.beforeAdd = func(h *fakeHost) {
		doc := wgconf.Parse(h.conf)
		addr, _ := wgconf.Allocate(netip.MustParsePrefix("10.8.0.0/24"), netip.MustParseAddr("10.8.0.1"), wgconf.UsedAddresses(doc, netip.MustParseAddr("10.8.0.1")))
		h.conf += wgconf.RenderPeer(mustPublicKey(), addr, "")
	}

	_, err := newRegistrar(t, host, "10.8.0.0/24").Register(context.Background(), mustPublicKey())
	require.Error(t, err)
	assert.Equal(t, 3, host.snapshots)
	assert.Equal(t, 0, host.additions)
}

func TestRegister_RemoteFailure(t *testing.T) {
	host := newHost()
	host.override = &remote.Result{Status: remote.StatusFailed, Stderr: "cat: /etc/wireguard/wg0.conf: Permission denied"}

	_, err := newRegistrar(t, host, "10.8.0.0/24").Register(context.Background(), mustPublicKey())
	require.Error(t, err)
	assert.Equal(t, fault.RemoteCommandFailed, fault.KindOf(err))
	assert.Contains(t, err.Error(), "Permission denied")
}

func TestRegister_TruncatedSnapshot(t *testing.T) {
	host := newHost()
	host.override = &remote.Result{Status: remote.StatusSuccess, Stdout: "@@server-public-key\nabc\n@@config\n[Interface]\nAddr"}

	_, err := newRegistrar(t, host, "10.8.0.0/24").Register(context.Background(), mustPublicKey())
	require.Error(t, err)
	assert.Equal(t, fault.UnexpectedOutput, fault.KindOf(err))
	raw, found := RawOutput(err)
	assert.True(t, found)
	assert.Equal(t, host.override.Stdout, raw)
}

type scriptedExecutor struct {
	results []*remote.Result
	calls   int
}

func (s *scriptedExecutor) Run(context.Context, string, time.Duration) (*remote.Result, error) {
	res := s.results[s.calls]
	s.calls++
	return res, nil
}

func TestRegister_MalformedAddPeerOutput(t *testing.T) {
	exec := &scriptedExecutor{results: []*remote.Result{
		{Status: remote.StatusSuccess, Stdout: "@@server-public-key\n\n@@config\n[Interface]\n\n@@end\n"},
		{Status: remote.StatusSuccess, Stdout: "wg: Unable to modify interface\n"},
	}}

	_, err := newRegistrar(t, exec, "10.8.0.0/24").Register(context.Background(), mustPublicKey())
	require.Error(t, err)
	assert.Equal(t, fault.UnexpectedOutput, fault.KindOf(err))
	raw, _ := RawOutput(err)
	assert.Equal(t, "wg: Unable to modify interface\n", raw)
}

func TestRegister_MalformedServerKeyIsDropped(t *testing.T) {
	psk := mustKey()
	exec := &scriptedExecutor{results: []*remote.Result{
		{Status: remote.StatusSuccess, Stdout: "@@server-public-key\nnot-a-key\n@@config\n[Interface]\n\n@@end\n"},
		{Status: remote.StatusSuccess, Stdout: `{"presharedKey":"` + psk + `","serverPublicKey":""}`},
	}}

	result, err := newRegistrar(t, exec, "10.8.0.0/24").Register(context.Background(), mustPublicKey())
	require.NoError(t, err)
	assert.Empty(t, result.ServerPublicKey)
	assert.Equal(t, psk, *result.PresharedKey)
}

func TestValidatePublicKey(t *testing.T) {
	assert.NoError(t, ValidatePublicKey(mustPublicKey()))

	for key, message := range map[string]string{
		"":                                     "publicKey is required.",
		"abcdefghij":                           "publicKey appears invalid.",
		"abcdefghijklmnop qrstuvwxyz01234567=": "publicKey appears invalid.",
		"abcdefghijklmnop\nqrstuvwxyz01234567": "publicKey appears invalid.",
	} {
		err := ValidatePublicKey(key)
		require.Error(t, err, key)
		assert.Equal(t, fault.ValidationError, fault.KindOf(err))
		assert.Equal(t, message, err.Error())
	}
}
