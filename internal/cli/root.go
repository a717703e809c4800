// Package cli defines the garmin-to-notion command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/app"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/chart"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/coach"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/logging"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/syncer"
)

// Runner executes one job against a bootstrapped App.
type Runner func(ctx context.Context, a *app.App) error

type options struct {
	propertiesFile string
	load           func() config.Config
}

// NewRootCommand builds the command tree. load supplies the configuration, normally config.Load.
func NewRootCommand(load func() config.Config) *cobra.Command {
	opts := &options{load: load}
	root := &cobra.Command{
		Use:           "garmin-to-notion",
		Short:         "Mirror Garmin Connect activities, gear and health into Notion databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.propertiesFile, "properties", "", "TOML file overriding Notion property names (default $PROPERTIES_FILE)")

	root.AddCommand(
		opts.command("activities", "Mirror recent activities and link their gear", runActivities),
		opts.command("gear", "Link recent activities to gear rows", runGear),
		opts.command("health", "Upsert today's health snapshot", runHealth),
		opts.command("coach", "Write the weekly coaching report", runCoach),
		opts.command("chart", "Attach the monthly training-load chart to the latest report", runChart),
		opts.command("all", "Run every configured job in order", runAll),
	)
	return root
}

func (o *options) command(use, short string, run Runner) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.execute(cmd.Context(), use, run)
		},
	}
}

func (o *options) execute(ctx context.Context, job string, run Runner) error {
	cfg := o.load()
	if o.propertiesFile != "" {
		cfg.PropertiesFile = o.propertiesFile
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "garmin-to-notion")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("command", job))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", zap.Error(err))
		return err
	}
	defer a.Close()

	started := time.Now()
	err = run(ctx, a)
	a.PushMetrics(ctx, job)
	if err != nil {
		logger.Error("command failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return err
	}
	logger.Info("command finished", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func mirror(ctx context.Context, a *app.App) (*syncer.Syncer, error) {
	if err := a.AuthenticateSink(ctx); err != nil {
		return nil, err
	}
	source, err := a.Source(ctx)
	if err != nil {
		return nil, err
	}
	return a.Syncer(source), nil
}

func runActivities(ctx context.Context, a *app.App) error {
	s, err := mirror(ctx, a)
	if err != nil {
		return err
	}
	report, err := s.SyncActivities(ctx)
	return logReport(a, report, err)
}

func runGear(ctx context.Context, a *app.App) error {
	s, err := mirror(ctx, a)
	if err != nil {
		return err
	}
	report, err := s.SyncGear(ctx)
	return logReport(a, report, err)
}

func runHealth(ctx context.Context, a *app.App) error {
	s, err := mirror(ctx, a)
	if err != nil {
		return err
	}
	report, err := s.SyncHealth(ctx)
	return logReport(a, report, err)
}

func runCoach(ctx context.Context, a *app.App) error {
	if err := a.AuthenticateSink(ctx); err != nil {
		return err
	}
	c, err := a.Coach(ctx)
	if err != nil {
		return err
	}
	res, err := c.Run(ctx)
	return logCoach(a, res, err)
}

func runChart(ctx context.Context, a *app.App) error {
	if err := a.AuthenticateSink(ctx); err != nil {
		return err
	}
	res, err := a.Charter().Run(ctx)
	return logChart(a, res, err)
}

// runAll runs the mirror jobs, then the report jobs when their databases are configured. A job
// failure does not stop later jobs; an authentication failure does.
func runAll(ctx context.Context, a *app.App) error {
	s, err := mirror(ctx, a)
	if err != nil {
		return err
	}

	report, err := s.SyncActivities(ctx)
	errs := []error{logReport(a, report, err)}
	if a.Config.GearDBID != "" {
		report, err = s.SyncGear(ctx)
		errs = append(errs, logReport(a, report, err))
	}
	if a.Config.HealthDBID != "" {
		report, err = s.SyncHealth(ctx)
		errs = append(errs, logReport(a, report, err))
	}
	if a.Config.CoachDBID == "" {
		return errors.Join(errs...)
	}

	if a.Config.GeminiAPIKey == "" {
		a.Logger.Info("coach report skipped, GEMINI_API_KEY not set")
	} else if c, err := a.Coach(ctx); err != nil {
		errs = append(errs, err)
	} else {
		res, err := c.Run(ctx)
		errs = append(errs, logCoach(a, res, err))
	}
	res, err := a.Charter().Run(ctx)
	errs = append(errs, logChart(a, res, err))
	return errors.Join(errs...)
}

func logReport(a *app.App, report syncer.Report, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", report.Job, err)
	}
	fields := []zap.Field{zap.String("job", report.Job), zap.String("run_id", report.RunID), zap.Int("fetched", report.Fetched)}
	for outcome, n := range report.Counts {
		fields = append(fields, zap.Int(string(outcome), n))
	}
	a.Logger.Info("job finished", fields...)
	return nil
}

func logCoach(a *app.App, res coach.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", coach.Job, err)
	}
	if res.Skipped {
		a.Logger.Info("no coach report written", zap.String("run_id", res.RunID))
		return nil
	}
	a.Logger.Info("coach report written", zap.String("run_id", res.RunID), zap.String("row_id", res.RowID), zap.String("score", string(res.Insight.Score)))
	return nil
}

func logChart(a *app.App, res chart.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", chart.Job, err)
	}
	if res.Reason != "" {
		a.Logger.Info("no chart attached", zap.String("run_id", res.RunID), zap.String("reason", res.Reason))
		return nil
	}
	a.Logger.Info("chart attached", zap.String("run_id", res.RunID), zap.String("report_id", res.ReportID), zap.Int("points", res.Points))
	return nil
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(args []string, load func() config.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(load)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, app.ErrAuthentication) {
			fmt.Fprintf(os.Stderr, "authentication failed: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}
