// Package events publishes pipeline run lifecycle events to Kafka so a fleet
// of daily forecast runs can be monitored centrally. Publishing is optional;
// with no brokers configured the pipeline uses the no-op publisher.
package events

import (
	"context"
	"time"
)

// Statuses of a run or step event.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Event is one lifecycle notification from a production run.
type Event struct {
	Forecast string    `json:"forecast"`
	Step     string    `json:"step,omitempty"` // empty for run-level events
	Date     string    `json:"date,omitempty"` // forecast date being processed
	Status   string    `json:"status"`
	Detail   string    `json:"detail,omitempty"` // error text on failure
	Time     time.Time `json:"time"`
}

// Publisher delivers run events. Delivery failures are the caller's to log;
// they never fail the run itself.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
