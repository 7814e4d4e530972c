package store

import (
	"context"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/model"
)

// Recorder receives every traffic evaluation the monitor completes.
type Recorder interface {
	Record(ctx context.Context, record *Record) error
	Close() error
}

// History is a Recorder that can also list what it recorded, newest last.
type History interface {
	Recorder
	List(instanceId string) ([]*Record, error)
}

// Record is one TrafficMonitor decision.
type Record struct {
	InstanceId     string                  `json:"instanceId"`
	Timestamp      time.Time               `json:"timestamp"`
	ThresholdMb    float64                 `json:"thresholdMbPerHour"`
	WindowHours    float64                 `json:"windowHours"`
	RequiredPoints int                     `json:"requiredPoints"`
	ShouldStop     bool                    `json:"shouldStop"`
	StopIssued     bool                    `json:"stopIssued"`
	Points         []model.EvaluationPoint `json:"points"`
}

func NewRecord(instanceId string, eval *model.TrafficEvaluation, stopIssued bool, at time.Time) *Record {
	return &Record{
		InstanceId:     instanceId,
		Timestamp:      at,
		ThresholdMb:    eval.ThresholdMb,
		WindowHours:    eval.WindowHours,
		RequiredPoints: eval.RequiredPoints,
		ShouldStop:     eval.ShouldStop,
		StopIssued:     stopIssued,
		Points:         eval.Points,
	}
}

// LatestMbPerHour is the rate of the newest bucket, or zero without buckets.
func (r *Record) LatestMbPerHour() float64 {
	if len(r.Points) == 0 {
		return 0
	}
	return r.Points[len(r.Points)-1].MegabytesPerHour
}

// Discard drops every record.
type Discard struct{}

func (Discard) Record(context.Context, *Record) error { return nil }
func (Discard) Close() error                          { return nil }
