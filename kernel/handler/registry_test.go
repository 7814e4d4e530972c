package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", HandlerFunc(func(_ context.Context, event *Event) *Response {
		return OK(Payload{"method": event.Method()})
	}))

	resp, err := r.Dispatch(context.Background(), "echo", &Event{HttpMethod: "get"})
	require.NoError(t, err)
	assert.Equal(t, "GET", decode(t, resp)["method"])
}

func TestRegistry_NotFound(t *testing.T) {
	_, err := NewRegistry().Dispatch(context.Background(), "nonexistent", &Event{})
	if err == nil {
		t.Fatal("expected error for nonexistent handler")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	noop := HandlerFunc(func(context.Context, *Event) *Response { return OK(Payload{}) })
	r.Register("noop", noop)
	assert.Panics(t, func() { r.Register("noop", noop) })
}

func TestRegistry_RecoversPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", HandlerFunc(func(context.Context, *Event) *Response { panic("nil map") }))

	resp, err := r.Dispatch(context.Background(), "broken", &Event{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(Deps{
		Config:   testConfig(t),
		Compute:  &fakeCompute{state: model.StateStopped},
		Metrics:  &fakeMetrics{},
		Notifier: &fakeNotifier{},
	})
	assert.Equal(t, []string{NameMonitor, NameRegister, NameStart, NameStatus, NameStop}, r.Names())

	resp, err := r.Dispatch(context.Background(), NameStop, &Event{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
