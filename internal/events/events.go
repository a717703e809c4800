// Package events publishes a notification after every successful sink write so downstream
// consumers can follow the mirror without polling the workspace.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a mirror event.
type Type string

const (
	RowCreated       Type = "mirror.row_created"
	SnapshotUpserted Type = "mirror.snapshot_upserted"
	GearLinked       Type = "mirror.gear_linked"
	ReportSaved      Type = "mirror.report_saved"
	ChartAttached    Type = "mirror.chart_attached"
)

// Event is the JSON payload written to the events topic. Key is the upstream external id, or the
// calendar date for daily snapshots and reports.
type Event struct {
	ID         string    `json:"event_id"`
	Type       Type      `json:"event_type"`
	RunID      string    `json:"run_id,omitempty"`
	Job        string    `json:"job"`
	Key        string    `json:"key"`
	DatabaseID string    `json:"database_id,omitempty"`
	RowID      string    `json:"row_id,omitempty"`
	Ambiguous  bool      `json:"ambiguous,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New fills in the id and timestamp of an event.
func New(t Type, job, key string) Event {
	return Event{ID: uuid.NewString(), Type: t, Job: job, Key: key, OccurredAt: time.Now().UTC()}
}

// Publisher delivers mirror events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
