// Package journal records what every mirror run did to each upstream record, so operators can
// see created, skipped and failed records without reading logs.
package journal

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Outcome is the result of handling one upstream record.
type Outcome string

const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Exists  Outcome = "exists"
	Linked  Outcome = "linked"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one execution of a job.
type Run struct {
	ID         string
	Job        string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     map[Outcome]int
	Error      string
}

// Entry is the outcome recorded for one upstream record. Key is the external id, or the date for
// daily snapshots.
type Entry struct {
	RunID      string
	Key        string
	Outcome    Outcome
	Reason     string
	Ambiguous  bool
	RowID      string
	RecordedAt time.Time
}

// Cursor models the run list pagination token.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// Writer persists runs as they happen.
type Writer interface {
	StartRun(ctx context.Context, run Run) error
	Record(ctx context.Context, entry Entry) error
	FinishRun(ctx context.Context, run Run) error
}

// Reader serves recorded runs, newest first.
type Reader interface {
	ListRuns(ctx context.Context, cursor *Cursor, limit int) ([]Run, *Cursor, error)
	GetRun(ctx context.Context, id string) (*Run, []Entry, error)
}
