package handler

import (
	"github.com/chunga-ict/vpnctl/kernel/cloud"
	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/store"
)

// Deps are the collaborators shared by the five operations. Registrar may be nil when
// peer registration is not configured.
type Deps struct {
	Config    *config.Config
	Compute   cloud.Compute
	Metrics   cloud.Metrics
	Notifier  cloud.Notifier
	Registrar PeerRegistrar
	Recorder  store.Recorder
}

func NewDefaultRegistry(d Deps) *Registry {
	r := NewRegistry()
	r.Register(NameStatus, NewStatusHandler(d.Config, d.Compute))
	r.Register(NameStart, NewStartHandler(d.Config, d.Compute, d.Notifier))
	r.Register(NameStop, NewStopHandler(d.Config, d.Compute))
	r.Register(NameMonitor, NewTrafficMonitor(d.Config, d.Compute, d.Metrics, d.Recorder))
	r.Register(NameRegister, NewRegisterHandler(d.Registrar))
	return r
}
