package handler

import (
	"context"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/cloud"
	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/chunga-ict/vpnctl/kernel/store"
	"github.com/chunga-ict/vpnctl/kernel/traffic"
	"github.com/michaelquigley/pfxlog"
)

// TrafficMonitor stops the instance once every bucket of the trailing window stayed at
// or below the configured rate.
type TrafficMonitor struct {
	instanceId string
	location   *time.Location
	cfg        config.MonitorConfig
	compute    cloud.Compute
	metrics    cloud.Metrics
	recorder   store.Recorder
	now        Clock
}

func NewTrafficMonitor(cfg *config.Config, compute cloud.Compute, metrics cloud.Metrics, recorder store.Recorder) *TrafficMonitor {
	if recorder == nil {
		recorder = store.Discard{}
	}
	return &TrafficMonitor{
		instanceId: cfg.InstanceId,
		location:   cfg.Location(),
		cfg:        cfg.Monitor,
		compute:    compute,
		metrics:    metrics,
		recorder:   recorder,
		now:        time.Now,
	}
}

func (h *TrafficMonitor) Handle(ctx context.Context, _ *Event) *Response {
	log := pfxlog.ContextLogger(h.instanceId)
	now := h.now()
	timestampLocal := model.FormatLocal(now.In(h.location))

	instance, err := h.compute.DescribeInstance(ctx, h.instanceId)
	if err != nil && !fault.Is(err, fault.NotFound) {
		log.WithError(err).Error("failed to describe instance")
		return Failure(err, "Failed to evaluate traffic metrics.")
	}
	if instance == nil || instance.State != model.StateRunning {
		log.Info("instance not running, skipping traffic evaluation")
		return OK(Payload{
			"message":        "Instance is not in a running state. No action taken.",
			"timestampLocal": timestampLocal,
		})
	}

	end := now.UTC()
	start := end.Add(-h.cfg.Window())
	var points []model.MetricPoint
	for _, name := range []string{cloud.MetricNetworkIn, cloud.MetricNetworkOut} {
		series, err := h.metrics.QueryMetric(ctx, name, h.instanceId, start, end, h.cfg.Period())
		if err != nil {
			log.WithError(err).Errorf("failed to query [%s]", name)
			return Failure(err, "Failed to evaluate traffic metrics.")
		}
		points = append(points, series...)
	}
	if len(points) == 0 {
		log.Info("no traffic metrics in window, skipping auto-stop")
		return OK(Payload{
			"message":        "No CloudWatch metrics found for evaluation window.",
			"timestampLocal": timestampLocal,
		})
	}

	eval := traffic.Evaluate(points, h.cfg)
	log.Infof("evaluated [%d] buckets, required [%d], should stop [%t]", len(eval.Points), eval.RequiredPoints, eval.ShouldStop)

	message := "Traffic above threshold. Instance remains running."
	if len(eval.Points) < eval.RequiredPoints {
		message = "Not enough traffic data for the evaluation window. Instance remains running."
	}
	if eval.ShouldStop {
		log.Info("traffic stayed below threshold, issuing stop")
		if err := h.compute.StopInstance(ctx, h.instanceId); err != nil {
			log.WithError(err).Error("failed to stop instance")
			return Failure(err, "Failed to evaluate traffic metrics.")
		}
		message = "Traffic remained below threshold. Stop command issued."
	}

	bestEffort(log.Entry, "record traffic evaluation", func() error {
		return h.recorder.Record(ctx, store.NewRecord(h.instanceId, eval, eval.ShouldStop, now))
	})

	return OK(Payload{
		"message":            message,
		"evaluation":         eval.Points,
		"thresholdMbPerHour": eval.ThresholdMb,
		"windowHours":        eval.WindowHours,
		"requiredPoints":     eval.RequiredPoints,
		"timestampLocal":     timestampLocal,
		"stopIssued":         eval.ShouldStop,
	})
}
