package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/cloud"
	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/fault"
	"github.com/chunga-ict/vpnctl/kernel/model"
	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
)

const startNotificationSubject = "VPN start requested"

type StartHandler struct {
	instanceId string
	location   *time.Location
	policy     config.StartConfig
	compute    cloud.Compute
	notifier   cloud.Notifier
	now        Clock
}

func NewStartHandler(cfg *config.Config, compute cloud.Compute, notifier cloud.Notifier) *StartHandler {
	return &StartHandler{
		instanceId: cfg.InstanceId,
		location:   cfg.Location(),
		policy:     cfg.Start,
		compute:    compute,
		notifier:   notifier,
		now:        time.Now,
	}
}

type startNotification struct {
	Message    string  `json:"message"`
	InstanceId string  `json:"instanceId"`
	Timestamp  string  `json:"timestamp"`
	SourceIp   *string `json:"sourceIp"`
	UserAgent  *string `json:"userAgent"`
	RequestId  *string `json:"requestId"`
}

func (h *StartHandler) Handle(ctx context.Context, event *Event) *Response {
	log := pfxlog.ContextLogger(h.instanceId)
	now := h.now().In(h.location)
	log.Infof("start request received at [%s]", model.FormatLocal(now))

	if err := h.checkWindow(now); err != nil {
		log.WithError(err).Warn("start rejected by weekday window")
		return JSON(http.StatusForbidden, Payload{
			"message":           err.Error(),
			"currentHourLocal":  now.Hour(),
			"allowedHoursLocal": []int{h.policy.WeekdayStartHour, h.policy.WeekdayEndHour},
		})
	}

	instance, err := h.compute.DescribeInstance(ctx, h.instanceId)
	if err != nil {
		log.WithError(err).Error("failed to describe instance")
		return Failure(err, "Failed to start instance.")
	}
	log.Infof("current state [%s]", instance.State)
	if instance.State.IsStarting() {
		return OK(Payload{"message": "Instance is already running.", "state": instance.State})
	}

	if err := h.compute.StartInstance(ctx, h.instanceId); err != nil {
		log.WithError(err).Error("failed to start instance")
		return Failure(err, "Failed to start instance.")
	}
	h.notify(ctx, log.Entry, event.Meta(), now)

	return OK(Payload{"message": "Start command issued successfully.", "state": model.StatePending})
}

// checkWindow rejects weekday requests outside [WeekdayStartHour, WeekdayEndHour).
// Weekends are unrestricted.
func (h *StartHandler) checkWindow(now time.Time) error {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return nil
	}
	if now.Hour() >= h.policy.WeekdayStartHour && now.Hour() < h.policy.WeekdayEndHour {
		return nil
	}
	return fault.New(fault.PolicyViolation, "VPN start is disabled outside %02d:00-%02d:00 %s on weekdays.",
		h.policy.WeekdayStartHour, h.policy.WeekdayEndHour, h.location)
}

func (h *StartHandler) notify(ctx context.Context, log logrus.FieldLogger, meta RequestMeta, now time.Time) {
	if h.policy.NotificationTopicArn == "" || h.notifier == nil {
		return
	}
	bestEffort(log, "publish start notification", func() error {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		err := enc.Encode(&startNotification{
			Message:    "VPN start initiated",
			InstanceId: h.instanceId,
			Timestamp:  model.FormatLocal(now),
			SourceIp:   meta.SourceIp,
			UserAgent:  meta.UserAgent,
			RequestId:  meta.RequestId,
		})
		if err != nil {
			return err
		}
		return h.notifier.Publish(ctx, h.policy.NotificationTopicArn, startNotificationSubject, string(bytes.TrimSpace(buf.Bytes())))
	})
}
