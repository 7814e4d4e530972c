package handler

import (
	"context"
	"fmt"
	"sort"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	NameStatus   = "status"
	NameStart    = "start"
	NameStop     = "stop"
	NameMonitor  = "monitor"
	NameRegister = "register"
)

// Registry maps operation names onto handlers.
type Registry struct {
	handlers cmap.ConcurrentMap[string, Handler]
}

func NewRegistry() *Registry {
	return &Registry{handlers: cmap.New[Handler]()}
}

// Register adds h under name, wrapped so a panic becomes a 500 response.
// e.g. Register(NameStatus, NewStatusHandler(cfg, compute))
func (r *Registry) Register(name string, h Handler) {
	if !r.handlers.SetIfAbsent(name, Recover(name, h)) {
		panic("Register called twice for " + name)
	}
}

func (r *Registry) Get(name string) (Handler, error) {
	h, ok := r.handlers.Get(name)
	if !ok {
		return nil, fmt.Errorf("handler '%s' not found in registry", name)
	}
	return h, nil
}

func (r *Registry) Names() []string {
	names := r.handlers.Keys()
	sort.Strings(names)
	return names
}

func (r *Registry) Dispatch(ctx context.Context, name string, event *Event) (*Response, error) {
	h, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, event), nil
}
