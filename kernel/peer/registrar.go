package peer

import (
	"context"
	"net/netip"
	"strings"
	"unicode"

	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/chunga-ict/vpnctl/kernel/remote"
	"github.com/chunga-ict/vpnctl/kernel/wgconf"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

const (
	minPublicKeyLength = 32
	defaultAttempts    = 3
)

// ValidatePublicKey applies the coarse sanity check used for incoming keys. It is not
// cryptographic validation; it only rejects values that are obviously wrong or would
// corrupt the configuration file.
func ValidatePublicKey(publicKey string) error {
	if publicKey == "" {
		return fault.New(fault.ValidationError, "publicKey is required.")
	}
	if len(publicKey) < minPublicKeyLength {
		return fault.New(fault.ValidationError, "publicKey appears invalid.")
	}
	for _, r := range publicKey {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fault.New(fault.ValidationError, "publicKey appears invalid.")
		}
	}
	return nil
}

// OutputError carries remote output that could not be interpreted.
type OutputError struct {
	Raw string
	Err error
}

func (e *OutputError) Error() string {
	return e.Err.Error()
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// RawOutput returns the remote output attached to err, if any.
func RawOutput(err error) (string, bool) {
	var outputErr *OutputError
	if errors.As(err, &outputErr) {
		return outputErr.Raw, true
	}
	return "", false
}

// Registrar assigns tunnel addresses to new peers. It reads the remote configuration,
// decides locally, then appends the peer with a script that re-checks under a file lock.
// A lost race makes the whole read-decide-apply sequence start over.
type Registrar struct {
	exec     remote.Executor
	cfg      config.RegistrarConfig
	subnet   netip.Prefix
	server   netip.Addr
	attempts int
}

func NewRegistrar(exec remote.Executor, cfg config.RegistrarConfig) (*Registrar, error) {
	subnet, err := cfg.Subnet()
	if err != nil {
		return nil, err
	}
	server, err := cfg.Server()
	if err != nil {
		return nil, err
	}
	return &Registrar{exec: exec, cfg: cfg, subnet: subnet, server: server, attempts: defaultAttempts}, nil
}

func (r *Registrar) Register(ctx context.Context, publicKey string) (*model.RegistrationResult, error) {
	publicKey = strings.TrimSpace(publicKey)
	if err := ValidatePublicKey(publicKey); err != nil {
		return nil, err
	}
	log := pfxlog.Logger().WithFields(logrus.Fields{"publicKey": publicKey, "interface": r.cfg.Interface})

	for attempt := 1; attempt <= r.attempts; attempt++ {
		snap, err := r.snapshot(ctx)
		if err != nil {
			return nil, err
		}

		if existing := snap.Config.FindPeer(publicKey); existing != nil {
			log.Info("peer already registered")
			return existingResult(existing, publicKey, snap.ServerPublicKey), nil
		}

		addr, err := wgconf.Allocate(r.subnet, r.server, wgconf.UsedAddresses(snap.Config, r.server))
		if err != nil {
			return nil, err
		}

		out, err := r.addPeer(ctx, publicKey, addr)
		if err != nil {
			return nil, err
		}
		if out.Conflict != "" {
			log.WithFields(logrus.Fields{"attempt": attempt, "conflict": out.Conflict, "address": addr}).Warn("configuration changed since snapshot, retrying")
			continue
		}

		assigned := addr.String()
		result := &model.RegistrationResult{
			AssignedIp:      &assigned,
			PublicKey:       publicKey,
			ServerPublicKey: bestServerKey(out.ServerPublicKey, snap.ServerPublicKey),
		}
		if out.PresharedKey != "" {
			psk := out.PresharedKey
			result.PresharedKey = &psk
		}
		log.WithField("assignedIp", assigned).Info("peer registered")
		return result, nil
	}
	return nil, fault.New(fault.UpstreamError, "registration conflicted with concurrent changes %d times", r.attempts)
}

func (r *Registrar) snapshot(ctx context.Context) (*wgconf.Snapshot, error) {
	script, err := wgconf.SnapshotScript(r.cfg.ConfPath, r.cfg.Interface)
	if err != nil {
		return nil, err
	}
	res, err := r.run(ctx, script)
	if err != nil {
		return nil, err
	}
	snap, err := wgconf.ParseSnapshot(res.Stdout)
	if err != nil {
		return nil, fault.Wrap(fault.UnexpectedOutput, &OutputError{Raw: res.Stdout, Err: err}, "Unexpected response from configuration read")
	}
	return snap, nil
}

func (r *Registrar) addPeer(ctx context.Context, publicKey string, addr netip.Addr) (*wgconf.AddPeerOutput, error) {
	script, err := wgconf.AddPeerScript(r.cfg.ConfPath, r.cfg.Interface, publicKey, addr)
	if err != nil {
		return nil, err
	}
	res, err := r.run(ctx, script)
	if err != nil {
		return nil, err
	}
	out, err := wgconf.ParseAddPeerOutput(res.Stdout)
	if err == nil && out.PresharedKey != "" {
		if _, keyErr := wgtypes.ParseKey(out.PresharedKey); keyErr != nil {
			err = fault.Wrap(fault.UnexpectedOutput, keyErr, "registration returned a malformed pre-shared key")
		}
	}
	if err != nil {
		return nil, fault.Wrap(fault.UnexpectedOutput, &OutputError{Raw: res.Stdout, Err: err}, "Unexpected response from registration command")
	}
	return out, nil
}

func (r *Registrar) run(ctx context.Context, script string) (*remote.Result, error) {
	res, err := r.exec.Run(ctx, script, r.cfg.CommandTimeout())
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func existingResult(existing *wgconf.Section, publicKey, serverKey string) *model.RegistrationResult {
	result := &model.RegistrationResult{
		AlreadyExists:   true,
		PublicKey:       publicKey,
		ServerPublicKey: bestServerKey(serverKey),
	}
	if host := wgconf.HostOf(existing.FirstAllowedIP()); host != "" {
		result.AssignedIp = &host
	}
	if psk, found := existing.Lookup(wgconf.KeyPresharedKey); found {
		result.PresharedKey = &psk
	}
	return result
}

// bestServerKey returns the first candidate that is a well formed WireGuard key, or "".
func bestServerKey(candidates ...string) string {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, err := wgtypes.ParseKey(candidate); err != nil {
			pfxlog.Logger().WithError(err).Warn("ignoring malformed server public key")
			continue
		}
		return candidate
	}
	return ""
}
