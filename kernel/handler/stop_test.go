package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStopHandler_Stops(t *testing.T) {
	compute := &fakeCompute{state: model.StateRunning}
	h := NewStopHandler(testConfig(t), compute)
	h.now = fixedClock(time.Date(2025, 3, 4, 2, 0, 0, 0, time.UTC))

	resp := h.Handle(context.Background(), &Event{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "stopping", body["state"])
	assert.Equal(t, "api", body["trigger"])
	assert.Equal(t, "2025-03-04T13:00:00+11:00", body["timestampLocal"])
	assert.Equal(t, 1, compute.stops)
}

func TestStopHandler_Idempotent(t *testing.T) {
	for _, state := range []model.InstanceState{model.StateStopping, model.StateStopped} {
		for _, event := range []*Event{{}, {Trigger: "nightly"}, {Source: "aws.events"}} {
			compute := &fakeCompute{state: state}
			h := NewStopHandler(testConfig(t), compute)

			for i := 0; i < 2; i++ {
				resp := h.Handle(context.Background(), event)
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.Equal(t, string(state), decode(t, resp)["state"])
			}
			assert.Zero(t, compute.stops)
		}
	}
}

func TestStopHandler_TriggerLabel(t *testing.T) {
	for _, tc := range []struct {
		event    *Event
		expected string
	}{
		{&Event{}, "api"},
		{&Event{Source: "aws.events"}, "aws.events"},
		{&Event{Trigger: "schedule", Source: "aws.events"}, "schedule"},
	} {
		body := decode(t, NewStopHandler(testConfig(t), &fakeCompute{state: model.StateStopped}).Handle(context.Background(), tc.event))
		assert.Equal(t, tc.expected, body["trigger"])
	}
}

func TestStopHandler_Failure(t *testing.T) {
	compute := &fakeCompute{describeErr: errors.New("RequestLimitExceeded")}

	resp := NewStopHandler(testConfig(t), compute).Handle(context.Background(), &Event{})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "Failed to stop instance.", body["message"])
	assert.Equal(t, "RequestLimitExceeded", body["error"])
}
