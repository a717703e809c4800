package syncer

import (
	"context"
	"fmt"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/reconcile"
)

// SyncHealth writes today's health snapshot, creating the day's row or updating the existing
// one. Nothing is written until at least one of HRV, body battery max or average stress is
// available.
func (s *Syncer) SyncHealth(ctx context.Context) (Report, error) {
	return s.run(ctx, JobHealth, func(ctx context.Context, st *runState) error {
		if s.cfg.HealthDB == "" {
			return fmt.Errorf("health: %w", ErrNotConfigured)
		}

		date := s.now().Format("2006-01-02")
		summary, err := s.source.GetDailySummary(ctx, date)
		if err != nil {
			return fmt.Errorf("fetch daily summary: %w", err)
		}
		st.fetched = 1

		p := s.cfg.Properties.Health
		props, err := reconcile.Extract(summary, healthPlan(p))
		if err != nil {
			s.note(ctx, st, journal.Entry{Key: date, Outcome: journal.Failed, Reason: err.Error()}, err)
			return nil
		}

		_, hasHRV := props[p.HRV]
		_, hasBodyBattery := props[p.BodyBatteryMax]
		_, hasStress := props[p.Stress]
		if !hasHRV && !hasBodyBattery && !hasStress {
			s.note(ctx, st, journal.Entry{Key: date, Outcome: journal.Skipped, Reason: "no health data yet"}, nil)
			return nil
		}

		res, err := reconcile.NewDailyUpserter(s.db).Upsert(ctx, s.cfg.HealthDB, p.Date, date, props)
		if err != nil {
			s.note(ctx, st, journal.Entry{Key: date, Outcome: journal.Failed, Reason: err.Error()}, err)
			return nil
		}

		outcome := journal.Updated
		if res.Created {
			outcome = journal.Created
		}
		s.note(ctx, st, journal.Entry{Key: date, Outcome: outcome, RowID: res.RowID, Ambiguous: res.Matches > 1}, nil)

		event := events.New(events.SnapshotUpserted, st.job, date)
		event.DatabaseID = s.cfg.HealthDB
		event.RowID = res.RowID
		event.Ambiguous = res.Matches > 1
		s.publish(ctx, st, event)
		return nil
	})
}
