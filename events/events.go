// Package events forwards record creations to optional sinks such as
// InfluxDB or an MQTT broker.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/zabeloliver/smarthome-api/store"
)

type Event struct {
	Kind     store.Kind `json:"kind"`
	ID       int        `json:"id"`
	ParentID int        `json:"parent_id,omitempty"`
	Time     time.Time  `json:"time"`
}

type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
