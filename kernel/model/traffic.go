package model

import "time"

// MetricPoint is one bucket returned by the metrics service.
type MetricPoint struct {
	Timestamp time.Time
	BytesSum  float64
}

type EvaluationPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	MegabytesPeriod  float64   `json:"megabytesPeriod"`
	MegabytesPerHour float64   `json:"megabytesPerHour"`
}

// TrafficEvaluation is ordered by timestamp ascending.
type TrafficEvaluation struct {
	Points         []EvaluationPoint
	ThresholdMb    float64
	WindowHours    float64
	RequiredPoints int
	ShouldStop     bool
}
