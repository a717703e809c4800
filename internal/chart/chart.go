// Package chart renders the monthly training-load chart and attaches it to the latest coach
// report.
package chart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/observability"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/reconcile"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// Job is the metrics and journal name of the chart run.
const Job = "chart"

// Heading is the text of the heading block placed above the chart image.
const Heading = "📊 Monthly Visuals"

const labelLayout = "Jan 02"

// Point is one charted activity.
type Point struct {
	Date       string
	Label      string
	DistanceKM float64
	AvgHR      float64
}

// Config selects the databases, the look-back window and the rendered image size.
type Config struct {
	ActivitiesDB string
	CoachDB      string
	Lookback     time.Duration
	BaseURL      string
	Width        int
	Height       int
	Properties   config.Properties
}

// Result reports what Run did. Reason explains a run that attached nothing.
type Result struct {
	RunID    string
	Points   int
	ReportID string
	URL      string
	Reason   string
}

// Option configures optional behaviour for the Charter.
type Option func(*Charter)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Charter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJournal records each run and its outcome.
func WithJournal(w journal.Writer) Option {
	return func(c *Charter) {
		c.journal = w
	}
}

// WithPublisher emits a chart event when an image is attached.
func WithPublisher(p events.Publisher) Option {
	return func(c *Charter) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithClock fixes the reference time of the look-back window.
func WithClock(now func() time.Time) Option {
	return func(c *Charter) {
		c.now = now
	}
}

// Charter builds and attaches charts.
type Charter struct {
	db        sink.Database
	cfg       Config
	logger    *zap.Logger
	journal   journal.Writer
	publisher events.Publisher
	now       func() time.Time
}

// New constructs a Charter. Zero config fields fall back to a 30 day window on quickchart.io at 600x300.
func New(db sink.Database, cfg Config, opts ...Option) *Charter {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://quickchart.io/chart"
	}
	if cfg.Width <= 0 {
		cfg.Width = 600
	}
	if cfg.Height <= 0 {
		cfg.Height = 300
	}
	c := &Charter{
		db:        db,
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

// Run charts the look-back window and appends it to the newest coach report. Having no data or
// no report is not an error; Result.Reason says why nothing was attached.
func (c *Charter) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	recorder := journal.Begin(ctx, c.journal, Job, c.logger)
	result, err := c.run(ctx, recorder)
	result.RunID = recorder.RunID()
	recorder.Finish(ctx, err)
	observability.ObserveRun(Job, started, err)
	return result, err
}

func (c *Charter) run(ctx context.Context, recorder *journal.Recorder) (Result, error) {
	if c.cfg.ActivitiesDB == "" || c.cfg.CoachDB == "" {
		return Result{}, errors.New("chart: activities and coach databases are required")
	}
	key := c.now().Format("2006-01-02")

	points, err := c.Points(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(points) == 0 {
		return c.skip(ctx, recorder, key, Result{}, "no data found to chart")
	}

	labels := make([]string, len(points))
	distances := make([]float64, len(points))
	heartRates := make([]float64, len(points))
	for i, p := range points {
		labels[i], distances[i], heartRates[i] = p.Label, p.DistanceKM, p.AvgHR
	}
	chartURL, err := URL(c.cfg.BaseURL, BuildDocument(labels, distances, heartRates), c.cfg.Width, c.cfg.Height)
	if err != nil {
		return Result{}, err
	}
	result := Result{Points: len(points), URL: chartURL}

	reportID, ok, err := c.latestReport(ctx)
	if err != nil {
		return result, err
	}
	if !ok {
		return c.skip(ctx, recorder, key, result, "no coach report found")
	}

	blocks := []sink.Block{
		{Type: sink.BlockHeading3, Text: Heading},
		{Type: sink.BlockImage, URL: chartURL},
	}
	if err := c.db.AppendBlocks(ctx, reportID, blocks); err != nil {
		recorder.Record(ctx, journal.Entry{Key: key, Outcome: journal.Failed, RowID: reportID, Reason: err.Error()})
		observability.RecordOutcome(Job, string(journal.Failed))
		return result, fmt.Errorf("attach chart: %w", err)
	}
	result.ReportID = reportID
	recorder.Record(ctx, journal.Entry{Key: key, Outcome: journal.Updated, RowID: reportID})
	observability.RecordOutcome(Job, string(journal.Updated))
	c.logger.Info("chart attached", zap.String("report_id", reportID), zap.Int("points", len(points)))

	event := events.New(events.ChartAttached, Job, key)
	event.RunID = recorder.RunID()
	event.DatabaseID = c.cfg.CoachDB
	event.RowID = reportID
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("publish event failed", zap.Error(err))
	}
	return result, nil
}

func (c *Charter) skip(ctx context.Context, recorder *journal.Recorder, key string, result Result, reason string) (Result, error) {
	c.logger.Info("chart skipped", zap.String("reason", reason))
	recorder.Record(ctx, journal.Entry{Key: key, Outcome: journal.Skipped, Reason: reason})
	observability.RecordOutcome(Job, string(journal.Skipped))
	result.Reason = reason
	return result, nil
}

// Points returns the activities in the look-back window with a positive distance, oldest first.
// A missing heart rate charts as 0.
func (c *Charter) Points(ctx context.Context) ([]Point, error) {
	props := c.cfg.Properties.Activities
	plan := reconcile.Plan{
		{Property: "date", Kind: sink.KindDate, Paths: []string{props.Date}, Transform: reconcile.DateOnly, Policy: reconcile.Required},
		{Property: "distance", Kind: sink.KindNumber, Paths: props.DistanceColumns(), Policy: reconcile.Required},
		{Property: "hr", Kind: sink.KindNumber, Paths: props.AvgHRColumns()},
	}
	since := c.now().Add(-c.cfg.Lookback).Format("2006-01-02")
	q := sink.Query{
		Filter: sink.Where(props.Date, sink.KindDate, sink.OnOrAfter, since),
		Sorts:  []sink.Sort{{Property: props.Date}},
	}

	var points []Point
	err := reconcile.ScanRows(ctx, c.db, c.cfg.ActivitiesDB, q, func(row sink.Row) error {
		values, err := reconcile.Extract(row, plan)
		if err != nil || values["distance"].Number <= 0 {
			return nil
		}
		day, err := time.Parse("2006-01-02", values["date"].Date)
		if err != nil {
			return nil
		}
		points = append(points, Point{
			Date:       values["date"].Date,
			Label:      day.Format(labelLayout),
			DistanceKM: values["distance"].Number,
			AvgHR:      values["hr"].Number,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read activities: %w", err)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

func (c *Charter) latestReport(ctx context.Context) (string, bool, error) {
	res, err := c.db.QueryRows(ctx, c.cfg.CoachDB, sink.Query{
		Sorts:    []sink.Sort{{Property: c.cfg.Properties.Coach.Date, Descending: true}},
		PageSize: 1,
	})
	if err != nil {
		return "", false, fmt.Errorf("find latest coach report: %w", err)
	}
	if len(res.Rows) == 0 {
		return "", false, nil
	}
	return res.Rows[0].ID, true, nil
}
