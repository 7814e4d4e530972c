package store

import (
	"context"

	"github.com/chunga-ict/vpnctl/kernel/config"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
)

const (
	measurementTraffic  = "vpn_traffic"
	measurementDecision = "vpn_traffic_decision"
)

// InfluxStore writes each evaluation bucket and the resulting decision to InfluxDB v2.
type InfluxStore struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

func NewInfluxStore(cfg config.InfluxConfig) *InfluxStore {
	client := influxdb2.NewClient(cfg.Url, cfg.Token)
	return &InfluxStore{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

func (s *InfluxStore) Record(ctx context.Context, record *Record) error {
	tags := map[string]string{"instance_id": record.InstanceId}

	points := make([]*write.Point, 0, len(record.Points)+1)
	for _, p := range record.Points {
		points = append(points, influxdb2.NewPoint(measurementTraffic, tags, map[string]interface{}{
			"megabytes_period":   p.MegabytesPeriod,
			"megabytes_per_hour": p.MegabytesPerHour,
		}, p.Timestamp))
	}
	points = append(points, influxdb2.NewPoint(measurementDecision, tags, map[string]interface{}{
		"threshold_mb_per_hour": record.ThresholdMb,
		"window_hours":          record.WindowHours,
		"required_points":       record.RequiredPoints,
		"buckets":               len(record.Points),
		"should_stop":           record.ShouldStop,
		"stop_issued":           record.StopIssued,
	}, record.Timestamp))

	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return errors.Wrapf(err, "write %d points to influxdb", len(points))
	}
	return nil
}

func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}
