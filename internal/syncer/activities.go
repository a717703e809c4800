package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/observability"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/reconcile"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/record"
)

// SyncActivities mirrors the most recent ActivityWindow activities. Records already present
// (by external id) are left untouched. When a gear database is configured every record in the
// window also goes through the gear link step, mirrored before or not.
func (s *Syncer) SyncActivities(ctx context.Context) (Report, error) {
	return s.run(ctx, JobActivities, func(ctx context.Context, st *runState) error {
		if s.cfg.ActivitiesDB == "" {
			return fmt.Errorf("activities: %w", ErrNotConfigured)
		}

		records, err := s.source.ListRecentActivities(ctx, 0, s.cfg.ActivityWindow)
		if err != nil {
			return fmt.Errorf("fetch activities: %w", err)
		}
		st.fetched = len(records)

		var gear reconcile.Index
		if s.cfg.GearDB != "" {
			gear, err = s.gearIndex(ctx, st)
			if err != nil {
				return err
			}
		}

		props := s.cfg.Properties.Activities
		dedup := reconcile.NewDeduper(s.db, s.cfg.ActivitiesDB, props.ID)
		plan := activityPlan(props)
		linker := s.linker()

		for _, rec := range records {
			s.mirrorActivity(ctx, st, dedup, plan, rec)
			if gear != nil {
				s.linkGear(ctx, st, linker, gear, rec)
			}
		}
		return nil
	})
}

func (s *Syncer) mirrorActivity(ctx context.Context, st *runState, dedup *reconcile.Deduper, plan reconcile.Plan, rec record.Record) {
	externalID, ok := reconcile.FirstID(rec, "activityId")
	if !ok {
		cause := &reconcile.MissingFieldError{Fields: []string{s.cfg.Properties.Activities.ID}}
		s.note(ctx, st, journal.Entry{Key: describe(rec), Outcome: journal.Skipped, Reason: cause.Error()}, cause)
		return
	}

	exists, err := dedup.Exists(ctx, externalID)
	if err != nil {
		s.note(ctx, st, journal.Entry{Key: externalID, Outcome: journal.Failed, Reason: err.Error()}, err)
		return
	}
	if exists {
		s.note(ctx, st, journal.Entry{Key: externalID, Outcome: journal.Exists}, nil)
		return
	}

	props, err := reconcile.Extract(rec, plan)
	if err != nil {
		outcome := journal.Failed
		if errors.Is(err, reconcile.ErrMissingField) {
			outcome = journal.Skipped
		}
		s.note(ctx, st, journal.Entry{Key: externalID, Outcome: outcome, Reason: err.Error()}, err)
		return
	}

	rowID, err := s.db.CreateRow(ctx, s.cfg.ActivitiesDB, props)
	if err != nil {
		s.note(ctx, st, journal.Entry{Key: externalID, Outcome: journal.Failed, Reason: err.Error()}, err)
		return
	}
	s.note(ctx, st, journal.Entry{Key: externalID, Outcome: journal.Created, RowID: rowID}, nil)

	event := events.New(events.RowCreated, st.job, externalID)
	event.DatabaseID = s.cfg.ActivitiesDB
	event.RowID = rowID
	s.publish(ctx, st, event)
}

func (s *Syncer) gearIndex(ctx context.Context, st *runState) (reconcile.Index, error) {
	index, err := reconcile.BuildIndex(ctx, s.db, s.cfg.GearDB, nil, s.cfg.Properties.Gear.ID)
	if err != nil {
		return nil, fmt.Errorf("gear index: %w", err)
	}
	observability.RecordIndexRows(st.job, len(index))
	st.logger.Debug("gear index built", zap.Int("entries", len(index)))
	return index, nil
}

func (s *Syncer) linker() *reconcile.Linker {
	props := s.cfg.Properties.Activities
	return reconcile.NewLinker(s.db, reconcile.LinkerConfig{
		ActivitiesDB:     s.cfg.ActivitiesDB,
		DateProperty:     props.Date,
		NameProperty:     props.Name,
		RelationProperty: props.Gear,
	})
}

// describe names a record that has no usable external id.
func describe(rec record.Record) string {
	if name, ok := rec.String("activityName"); ok {
		return name
	}
	return "unidentified activity"
}
