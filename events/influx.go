package events

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go"
)

type recordWriter interface {
	WriteRecord(ctx context.Context, line ...string) error
}

type InfluxSink struct {
	api         recordWriter
	client      influxdb2.Client
	measurement string
}

func NewInfluxSink(host, token, org, bucket, measurement string) *InfluxSink {
	// Create a new client using an InfluxDB server base URL and an authentication token
	client := influxdb2.NewClient(host, token)
	return &InfluxSink{
		api:         client.WriteAPIBlocking(org, bucket),
		client:      client,
		measurement: measurement,
	}
}

func (s *InfluxSink) Publish(ctx context.Context, e Event) error {
	return s.api.WriteRecord(ctx, s.line(e))
}

func (s *InfluxSink) line(e Event) string {
	influxLine := fmt.Sprintf("%s,kind=%s id=%di", s.measurement, e.Kind, e.ID)
	if e.ParentID != 0 {
		influxLine += fmt.Sprintf(",parent_id=%di", e.ParentID)
	}
	// add Timestamp to line
	influxLine += " " + fmt.Sprint(e.Time.UTC().UnixNano())
	return influxLine
}

func (s *InfluxSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
