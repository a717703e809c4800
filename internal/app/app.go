// Package app builds every client and optional integration from config.Config. Nothing in the
// module reads configuration or holds a client globally; commands get what they need from an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/chart"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/coach"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/coach/gemini"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/config"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/garmin"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal/postgres"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/notion"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/observability"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/syncer"
)

// ErrAuthentication marks a rejected credential for the source or the sink. Commands exit 1 on it.
var ErrAuthentication = errors.New("authentication failed")

// App holds the clients shared by the jobs of one process.
type App struct {
	Config     config.Config
	Properties config.Properties
	Logger     *zap.Logger
	Notion     *notion.Client
	Journal    journal.Writer
	Publisher  events.Publisher
	Reporter   *observability.Reporter

	pool    *pgxpool.Pool
	source  *garmin.Client
	closers []func() error
}

// New wires the sink client, journal, publisher and error reporter. It performs no credential
// checks; call AuthenticateSink and Source for that.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	props, err := config.LoadProperties(cfg.PropertiesFile)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Properties: props,
		Logger:     logger,
		Notion: notion.NewClient(notion.Config{
			BaseURL: cfg.NotionBaseURL,
			Token:   cfg.NotionToken,
			Version: cfg.NotionVersion,
			Timeout: cfg.HTTPTimeout,
		}),
		Journal:   journal.NewLog(logger),
		Publisher: events.Nop{},
	}

	a.Reporter, err = observability.NewReporter(observability.SentryConfig{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		ServerName:  "garmin-to-notion",
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		repo := postgres.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.Journal = repo
		logger.Info("run journal stored in postgres")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		a.Publisher = producer
		a.closers = append(a.closers, producer.Close)
		logger.Info("mirror events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.EventsTopic))
	}
	return a, nil
}

// AuthenticateSink checks the sink token. A rejected token wraps ErrAuthentication.
func (a *App) AuthenticateSink(ctx context.Context) error {
	if a.Config.NotionToken == "" {
		return fmt.Errorf("%w: NOTION_TOKEN is not set", ErrAuthentication)
	}
	name, err := a.Notion.Me(ctx)
	if err != nil {
		if notion.IsUnauthorized(err) {
			return fmt.Errorf("%w: notion: %w", ErrAuthentication, err)
		}
		return fmt.Errorf("notion credential check: %w", err)
	}
	a.Logger.Info("notion authenticated", zap.String("bot", name))
	return nil
}

// Source logs in to Garmin Connect once and returns the shared client.
func (a *App) Source(ctx context.Context) (*garmin.Client, error) {
	if a.source != nil {
		return a.source, nil
	}
	client := garmin.NewClient(garmin.Config{
		BaseURL:  a.Config.GarminBaseURL,
		TokenURL: a.Config.GarminTokenURL,
		ClientID: a.Config.GarminClientID,
		Email:    a.Config.GarminEmail,
		Password: a.Config.GarminPassword,
		Timeout:  a.Config.HTTPTimeout,
	})
	if err := client.Login(ctx); err != nil {
		if errors.Is(err, garmin.ErrLogin) {
			return nil, fmt.Errorf("%w: garmin: %w", ErrAuthentication, err)
		}
		return nil, err
	}
	a.Logger.Info("garmin authenticated")
	a.source = client
	return client, nil
}

// Syncer builds the mirror orchestrator over an authenticated source.
func (a *App) Syncer(source syncer.Source) *syncer.Syncer {
	return syncer.New(source, a.Notion, syncer.Config{
		ActivitiesDB:   a.Config.ActivitiesDBID,
		GearDB:         a.Config.GearDBID,
		HealthDB:       a.Config.HealthDBID,
		ActivityWindow: a.Config.ActivityWindow,
		GearWindow:     a.Config.GearWindow,
		Properties:     a.Properties,
	},
		syncer.WithLogger(a.Logger),
		syncer.WithJournal(a.Journal),
		syncer.WithPublisher(a.Publisher),
		syncer.WithReporter(a.Reporter),
	)
}

// Coach builds the weekly report job backed by Gemini.
func (a *App) Coach(ctx context.Context) (*coach.Coach, error) {
	completer, err := gemini.NewClient(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, completer.Close)
	return a.CoachWith(completer), nil
}

// CoachWith builds the weekly report job over an arbitrary completer.
func (a *App) CoachWith(completer coach.Completer) *coach.Coach {
	return coach.New(a.Notion, completer, coach.Config{
		ActivitiesDB: a.Config.ActivitiesDBID,
		HealthDB:     a.Config.HealthDBID,
		CoachDB:      a.Config.CoachDBID,
		Lookback:     a.Config.CoachLookback,
		Properties:   a.Properties,
	},
		coach.WithLogger(a.Logger),
		coach.WithJournal(a.Journal),
		coach.WithPublisher(a.Publisher),
	)
}

// Charter builds the chart job.
func (a *App) Charter() *chart.Charter {
	return chart.New(a.Notion, chart.Config{
		ActivitiesDB: a.Config.ActivitiesDBID,
		CoachDB:      a.Config.CoachDBID,
		Lookback:     a.Config.ChartLookback,
		BaseURL:      a.Config.ChartBaseURL,
		Width:        a.Config.ChartWidth,
		Height:       a.Config.ChartHeight,
		Properties:   a.Properties,
	},
		chart.WithLogger(a.Logger),
		chart.WithJournal(a.Journal),
		chart.WithPublisher(a.Publisher),
	)
}

// PushMetrics sends the job's metrics to the Pushgateway when one is configured. Failures are
// logged only.
func (a *App) PushMetrics(ctx context.Context, job string) {
	if err := observability.Push(ctx, a.Config.PushgatewayURL, job); err != nil {
		a.Logger.Warn("push metrics failed", zap.String("job", job), zap.Error(err))
	}
}

// Close flushes the error reporter and releases every connection.
func (a *App) Close() {
	a.Reporter.Flush(2 * time.Second)
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
