package traffic

import (
	"math"
	"sort"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/model"
)

const bytesPerMegabyte = 1024 * 1024

// Merge sums all series by bucket timestamp and returns the buckets oldest first.
func Merge(series ...[]model.MetricPoint) []model.MetricPoint {
	totals := make(map[int64]*model.MetricPoint)
	for _, points := range series {
		for _, p := range points {
			key := p.Timestamp.UnixNano()
			if merged, found := totals[key]; found {
				merged.BytesSum += p.BytesSum
				continue
			}
			totals[key] = &model.MetricPoint{Timestamp: p.Timestamp, BytesSum: p.BytesSum}
		}
	}

	merged := make([]model.MetricPoint, 0, len(totals))
	for _, p := range totals {
		merged = append(merged, *p)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}

// Convert turns byte sums into megabytes per bucket and per hour, rounded to three
// decimals. The rounded values are the ones compared against the threshold.
func Convert(points []model.MetricPoint, period time.Duration) []model.EvaluationPoint {
	perHour := float64(time.Hour) / float64(period)
	converted := make([]model.EvaluationPoint, 0, len(points))
	for _, p := range points {
		mb := p.BytesSum / bytesPerMegabyte
		converted = append(converted, model.EvaluationPoint{
			Timestamp:        p.Timestamp,
			MegabytesPeriod:  round3(mb),
			MegabytesPerHour: round3(mb * perHour),
		})
	}
	return converted
}

// Evaluate decides whether the trailing window was idle: the most recent RequiredPoints
// buckets must all exist and all be at or below the threshold.
func Evaluate(points []model.MetricPoint, cfg config.MonitorConfig) *model.TrafficEvaluation {
	eval := &model.TrafficEvaluation{
		Points:         Convert(Merge(points), cfg.Period()),
		ThresholdMb:    cfg.ThresholdMb,
		WindowHours:    cfg.WindowHours,
		RequiredPoints: cfg.RequiredPoints(),
	}
	if len(eval.Points) < eval.RequiredPoints {
		return eval
	}
	for _, p := range eval.Points[len(eval.Points)-eval.RequiredPoints:] {
		if p.MegabytesPerHour > cfg.ThresholdMb {
			return eval
		}
	}
	eval.ShouldStop = true
	return eval
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
