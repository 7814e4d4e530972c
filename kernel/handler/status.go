package handler

import (
	"context"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/cloud"
	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/michaelquigley/pfxlog"
)

type StatusHandler struct {
	instanceId string
	location   *time.Location
	compute    cloud.Compute
	now        Clock
}

func NewStatusHandler(cfg *config.Config, compute cloud.Compute) *StatusHandler {
	return &StatusHandler{
		instanceId: cfg.InstanceId,
		location:   cfg.Location(),
		compute:    compute,
		now:        time.Now,
	}
}

func (h *StatusHandler) Handle(ctx context.Context, _ *Event) *Response {
	log := pfxlog.ContextLogger(h.instanceId)

	instance, err := h.compute.DescribeInstance(ctx, h.instanceId)
	if err != nil {
		log.WithError(err).Error("failed to describe instance")
		return Failure(err, "Failed to retrieve instance status.")
	}
	health, err := h.compute.DescribeHealth(ctx, h.instanceId)
	if err != nil {
		log.WithError(err).Error("failed to describe instance health")
		return Failure(err, "Failed to retrieve instance status.")
	}

	snapshot := model.NewStatusSnapshot(instance, health, h.now().In(h.location))
	log.Infof("state [%s], status checks passed [%t]", snapshot.State, snapshot.StatusChecksPassed)
	return OK(snapshot)
}
