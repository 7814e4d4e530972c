package handler

import (
	"context"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/cloud"
	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/michaelquigley/pfxlog"
)

type StopHandler struct {
	instanceId string
	location   *time.Location
	compute    cloud.Compute
	now        Clock
}

func NewStopHandler(cfg *config.Config, compute cloud.Compute) *StopHandler {
	return &StopHandler{
		instanceId: cfg.InstanceId,
		location:   cfg.Location(),
		compute:    compute,
		now:        time.Now,
	}
}

func (h *StopHandler) Handle(ctx context.Context, event *Event) *Response {
	trigger := event.TriggerLabel()
	log := pfxlog.ContextLogger(h.instanceId).WithField("trigger", trigger)
	log.Info("stop request received")

	instance, err := h.compute.DescribeInstance(ctx, h.instanceId)
	if err != nil {
		log.WithError(err).Error("failed to describe instance")
		return Failure(err, "Failed to stop instance.")
	}
	log.Infof("current state [%s]", instance.State)
	if instance.State.IsStopping() {
		return OK(Payload{
			"message": "Instance is already stopping or stopped.",
			"state":   instance.State,
			"trigger": trigger,
		})
	}

	if err := h.compute.StopInstance(ctx, h.instanceId); err != nil {
		log.WithError(err).Error("failed to stop instance")
		return Failure(err, "Failed to stop instance.")
	}
	return OK(Payload{
		"message":        "Stop command issued successfully.",
		"state":          model.StateStopping,
		"trigger":        trigger,
		"timestampLocal": model.FormatLocal(h.now().In(h.location)),
	})
}
