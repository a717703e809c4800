// Package coach produces the weekly coaching report: it reads the mirrored training and health
// rows, asks a completion service for a structured assessment and stores it as a report row.
package coach

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/observability"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/reconcile"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// Job is the metrics and journal name of the coach run.
const Job = "coach"

// Completer turns a prompt into a JSON completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects the databases and look-back window.
type Config struct {
	ActivitiesDB string
	HealthDB     string
	CoachDB      string
	Lookback     time.Duration
	Properties   config.Properties
}

// Result reports what Run did. Skipped is set when there was nothing to analyse.
type Result struct {
	RunID   string
	RowID   string
	Insight Insight
	Skipped bool
}

// Option configures optional behaviour for the Coach.
type Option func(*Coach)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coach) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJournal records the run in w.
func WithJournal(w journal.Writer) Option {
	return func(c *Coach) {
		c.journal = w
	}
}

// WithPublisher emits an event when a report is saved.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coach) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithClock overrides the clock that anchors the look-back window and the report date.
func WithClock(now func() time.Time) Option {
	return func(c *Coach) {
		c.now = now
	}
}

// Coach builds weekly reports.
type Coach struct {
	db        sink.Database
	completer Completer
	cfg       Config
	logger    *zap.Logger
	journal   journal.Writer
	publisher events.Publisher
	now       func() time.Time
}

// New constructs a Coach.
func New(db sink.Database, completer Completer, cfg Config, opts ...Option) *Coach {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 7 * 24 * time.Hour
	}
	c := &Coach{
		db:        db,
		completer: completer,
		cfg:       cfg,
		logger:    zap.NewNop(),
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run gathers the window, requests the insight and saves the report. Nothing is written when
// the completion cannot be parsed.
func (c *Coach) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	recorder := journal.Begin(ctx, c.journal, Job, c.logger)
	result, err := c.run(ctx, recorder)
	result.RunID = recorder.RunID()
	recorder.Finish(ctx, err)
	observability.ObserveRun(Job, started, err)
	return result, err
}

func (c *Coach) run(ctx context.Context, recorder *journal.Recorder) (Result, error) {
	if c.cfg.ActivitiesDB == "" || c.cfg.CoachDB == "" {
		return Result{}, fmt.Errorf("coach: activities and coach databases are required")
	}
	today := c.now().Format("2006-01-02")

	activityLog, healthLog, err := c.Gather(ctx)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("coach data gathered", zap.Int("activities", len(activityLog)), zap.Int("health_days", len(healthLog)))
	if len(activityLog) == 0 && len(healthLog) == 0 {
		c.logger.Info("no data to report")
		recorder.Record(ctx, journal.Entry{Key: today, Outcome: journal.Skipped, Reason: "no data to report"})
		observability.RecordOutcome(Job, string(journal.Skipped))
		return Result{Skipped: true}, nil
	}

	days := int(c.cfg.Lookback / (24 * time.Hour))
	raw, err := c.completer.Complete(ctx, BuildPrompt(days, activityLog, healthLog))
	if err != nil {
		return Result{}, fmt.Errorf("request insight: %w", err)
	}
	insight, err := ParseInsight(raw)
	if err != nil {
		recorder.Record(ctx, journal.Entry{Key: today, Outcome: journal.Failed, Reason: err.Error()})
		observability.RecordOutcome(Job, string(journal.Failed))
		return Result{}, err
	}

	rowID, err := c.SaveReport(ctx, today, insight)
	if err != nil {
		recorder.Record(ctx, journal.Entry{Key: today, Outcome: journal.Failed, Reason: err.Error()})
		observability.RecordOutcome(Job, string(journal.Failed))
		return Result{}, err
	}
	recorder.Record(ctx, journal.Entry{Key: today, Outcome: journal.Created, RowID: rowID})
	observability.RecordOutcome(Job, string(journal.Created))
	c.logger.Info("coach report saved", zap.String("row_id", rowID), zap.String("score", string(insight.Score)))

	event := events.New(events.ReportSaved, Job, today)
	event.RunID = recorder.RunID()
	event.DatabaseID = c.cfg.CoachDB
	event.RowID = rowID
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("publish event failed", zap.Error(err))
	}
	return Result{RowID: rowID, Insight: insight}, nil
}

// Gather reads every activity and health row dated within the look-back window and renders
// them as log lines. Rows lacking a name, date or distance are left out.
func (c *Coach) Gather(ctx context.Context) (activityLog, healthLog []string, err error) {
	since := c.now().Add(-c.cfg.Lookback).Format("2006-01-02")
	props := c.cfg.Properties

	activityPlan := reconcile.Plan{
		{Property: "name", Kind: sink.KindTitle, Paths: []string{props.Activities.Name, "Name"}, Policy: reconcile.Required},
		{Property: "date", Kind: sink.KindDate, Paths: []string{props.Activities.Date}, Transform: reconcile.DateOnly, Policy: reconcile.Required},
		{Property: "distance", Kind: sink.KindNumber, Paths: props.Activities.DistanceColumns(), Policy: reconcile.Required},
	}
	q := sink.Query{Filter: sink.Where(props.Activities.Date, sink.KindDate, sink.OnOrAfter, since)}
	err = reconcile.ScanRows(ctx, c.db, c.cfg.ActivitiesDB, q, func(row sink.Row) error {
		values, err := reconcile.Extract(row, activityPlan)
		if err != nil {
			c.logger.Debug("activity row skipped", zap.String("row_id", row.ID), zap.Error(err))
			return nil
		}
		activityLog = append(activityLog, fmt.Sprintf("- %s: %s (%skm)",
			values["date"].Date, values["name"].Text, formatNumber(values["distance"])))
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("read activities: %w", err)
	}

	if c.cfg.HealthDB == "" {
		return activityLog, nil, nil
	}

	h := props.Health
	healthPlan := reconcile.Plan{
		{Property: "date", Kind: sink.KindDate, Paths: []string{h.Date}, Transform: reconcile.DateOnly, Policy: reconcile.Required},
		{Property: "hrv", Kind: sink.KindNumber, Paths: []string{h.HRV}},
		{Property: "bb_max", Kind: sink.KindNumber, Paths: []string{h.BodyBatteryMax}},
		{Property: "stress", Kind: sink.KindNumber, Paths: []string{h.Stress}},
	}
	q = sink.Query{Filter: sink.Where(h.Date, sink.KindDate, sink.OnOrAfter, since)}
	err = reconcile.ScanRows(ctx, c.db, c.cfg.HealthDB, q, func(row sink.Row) error {
		values, err := reconcile.Extract(row, healthPlan)
		if err != nil {
			return nil
		}
		healthLog = append(healthLog, fmt.Sprintf("- %s: HRV %s, Body Batt Max %s, Stress %s",
			values["date"].Date, formatNumber(values["hrv"]), formatNumber(values["bb_max"]), formatNumber(values["stress"])))
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("read health: %w", err)
	}
	return activityLog, healthLog, nil
}

// SaveReport writes the insight as a new coach row dated date.
func (c *Coach) SaveReport(ctx context.Context, date string, in Insight) (string, error) {
	p := c.cfg.Properties.Coach
	rowID, err := c.db.CreateRow(ctx, c.cfg.CoachDB, sink.Properties{
		p.Name:          sink.Title("Week Analysis: " + date),
		p.Date:          sink.Date(date),
		p.Summary:       sink.RichText(in.Summary),
		p.RecoveryScore: sink.Select(string(in.Score)),
		p.ActionItem:    sink.RichText(in.Action),
	})
	if err != nil {
		return "", fmt.Errorf("save coach report: %w", err)
	}
	return rowID, nil
}

func formatNumber(v sink.Value) string {
	if v.Kind != sink.KindNumber {
		return "N/A"
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}
