// Package syncer sequences the reconciliation steps for each mirror job: fetch a bounded window
// of upstream records, decide per record whether to create, update, link or skip, and write.
//
// Every job assumes it is the only writer to its sink databases. The existence checks and the
// writes that follow them are separate calls, so two concurrent runs can both create a row.
package syncer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/observability"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/record"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// Job names, used for metrics, journal runs and event payloads.
const (
	JobActivities = "activities"
	JobGear       = "gear"
	JobHealth     = "health"
)

var (
	// ErrNotConfigured is returned when a job's target database id is empty.
	ErrNotConfigured = errors.New("sink database not configured")
)

// Source is the upstream fitness provider.
type Source interface {
	ListRecentActivities(ctx context.Context, offset, count int) ([]record.Record, error)
	GetDailySummary(ctx context.Context, date string) (record.Record, error)
}

// ErrorReporter receives per-record failures.
type ErrorReporter interface {
	Capture(err error, tags map[string]string)
}

// Config selects the sink databases, windows and column names.
type Config struct {
	ActivitiesDB   string
	GearDB         string
	HealthDB       string
	ActivityWindow int
	GearWindow     int
	Properties     config.Properties
}

// Report summarises one job run.
type Report struct {
	Job     string
	RunID   string
	Fetched int
	Counts  map[journal.Outcome]int
}

// Count returns the number of entries recorded with outcome.
func (r Report) Count(outcome journal.Outcome) int {
	return r.Counts[outcome]
}

// Option configures optional behaviour for the Syncer.
type Option func(*Syncer)

// WithLogger overrides the logger used to report progress and per-record failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal records every outcome in w.
func WithJournal(w journal.Writer) Option {
	return func(s *Syncer) {
		s.journal = w
	}
}

// WithPublisher emits an event after every successful write.
func WithPublisher(p events.Publisher) Option {
	return func(s *Syncer) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithReporter forwards per-record failures to r.
func WithReporter(r ErrorReporter) Option {
	return func(s *Syncer) {
		s.reporter = r
	}
}

// WithClock overrides the clock used to pick the health snapshot date.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// Syncer runs the activity, gear and health jobs.
type Syncer struct {
	source    Source
	db        sink.Database
	cfg       Config
	logger    *zap.Logger
	journal   journal.Writer
	publisher events.Publisher
	reporter  ErrorReporter
	now       func() time.Time
}

// New constructs a Syncer.
func New(source Source, db sink.Database, cfg Config, opts ...Option) *Syncer {
	if cfg.ActivityWindow <= 0 {
		cfg.ActivityWindow = 10
	}
	if cfg.GearWindow <= 0 {
		cfg.GearWindow = 5
	}
	s := &Syncer{
		source:    source,
		db:        db,
		cfg:       cfg,
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runState carries the per-run journal recorder and logger.
type runState struct {
	job      string
	recorder *journal.Recorder
	logger   *zap.Logger
	fetched  int
}

func (s *Syncer) run(ctx context.Context, job string, fn func(context.Context, *runState) error) (Report, error) {
	started := time.Now()
	recorder := journal.Begin(ctx, s.journal, job, s.logger)
	state := &runState{
		job:      job,
		recorder: recorder,
		logger:   s.logger.With(zap.String("job", job), zap.String("run_id", recorder.RunID())),
	}

	state.logger.Info("run started")
	err := fn(ctx, state)
	run := recorder.Finish(ctx, err)
	observability.ObserveRun(job, started, err)

	report := Report{Job: job, RunID: run.ID, Fetched: state.fetched, Counts: run.Counts}
	if err != nil {
		state.logger.Error("run failed", zap.Error(err))
		return report, err
	}
	state.logger.Info("run finished", zap.Int("fetched", state.fetched), zap.Any("counts", run.Counts))
	return report, nil
}

// note journals, counts and logs one outcome. A non-nil cause on a failed entry is reported.
func (s *Syncer) note(ctx context.Context, st *runState, entry journal.Entry, cause error) {
	st.recorder.Record(ctx, entry)
	observability.RecordOutcome(st.job, string(entry.Outcome))

	fields := []zap.Field{zap.String("key", entry.Key), zap.String("outcome", string(entry.Outcome))}
	if entry.RowID != "" {
		fields = append(fields, zap.String("row_id", entry.RowID))
	}
	if entry.Reason != "" {
		fields = append(fields, zap.String("reason", entry.Reason))
	}
	if entry.Ambiguous {
		fields = append(fields, zap.Bool("ambiguous", true))
	}

	switch entry.Outcome {
	case journal.Failed:
		st.logger.Error("record failed", append(fields, zap.Error(cause))...)
		if s.reporter != nil && cause != nil {
			s.reporter.Capture(cause, map[string]string{"job": st.job, "key": entry.Key, "run_id": st.recorder.RunID()})
		}
	case journal.Skipped:
		st.logger.Warn("record skipped", fields...)
	default:
		if entry.Ambiguous {
			st.logger.Warn("ambiguous match, first row used", fields...)
			return
		}
		st.logger.Info("record handled", fields...)
	}
}

func (s *Syncer) publish(ctx context.Context, st *runState, event events.Event) {
	event.RunID = st.recorder.RunID()
	if err := s.publisher.Publish(ctx, event); err != nil {
		st.logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
