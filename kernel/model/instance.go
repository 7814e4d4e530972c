package model

import "time"

// InstanceState mirrors the lifecycle names reported by the compute control plane.
type InstanceState string

const (
	StatePending      InstanceState = "pending"
	StateRunning      InstanceState = "running"
	StateStopping     InstanceState = "stopping"
	StateStopped      InstanceState = "stopped"
	StateShuttingDown InstanceState = "shutting-down"
	StateTerminated   InstanceState = "terminated"
)

// IsStarting reports whether a start request would be a no-op.
func (s InstanceState) IsStarting() bool {
	return s == StatePending || s == StateRunning
}

// IsStopping reports whether a stop request would be a no-op.
func (s InstanceState) IsStopping() bool {
	return s == StateStopping || s == StateStopped
}

type InstanceDescription struct {
	InstanceId       string
	State            InstanceState
	PublicIp         string
	PrivateIp        string
	AvailabilityZone string
}

type HealthDescription struct {
	SystemStatus   string
	InstanceStatus string
}

// StatusSnapshot is built fresh for every status request and never persisted.
type StatusSnapshot struct {
	InstanceId         string        `json:"instanceId"`
	State              InstanceState `json:"state"`
	PublicIp           *string       `json:"publicIp"`
	PrivateIp          *string       `json:"privateIp"`
	AvailabilityZone   *string       `json:"availabilityZone"`
	SystemStatus       *string       `json:"systemStatus"`
	InstanceStatus     *string       `json:"instanceStatus"`
	StatusChecksPassed bool          `json:"statusChecksPassed"`
	TimestampLocal     string        `json:"timestampLocal"`
}

func NewStatusSnapshot(instance *InstanceDescription, health *HealthDescription, now time.Time) *StatusSnapshot {
	return &StatusSnapshot{
		InstanceId:         instance.InstanceId,
		State:              instance.State,
		PublicIp:           optional(instance.PublicIp),
		PrivateIp:          optional(instance.PrivateIp),
		AvailabilityZone:   optional(instance.AvailabilityZone),
		SystemStatus:       optional(health.SystemStatus),
		InstanceStatus:     optional(health.InstanceStatus),
		StatusChecksPassed: instance.State == StateRunning && checkPassed(health.SystemStatus) && checkPassed(health.InstanceStatus),
		TimestampLocal:     FormatLocal(now),
	}
}

func checkPassed(status string) bool {
	return status == "ok" || status == "passed"
}

// FormatLocal renders a timestamp the way every response body reports time.
func FormatLocal(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
