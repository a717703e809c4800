package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/events"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/journal"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/reconcile"
	"github.com/tiesklinkhamer/garmin-to-notion/internal/record"
)

// SyncGear re-examines the last GearWindow activities and points each mirrored activity row at
// the gear row carrying its equipment id. Unknown gear and unmatched activities are skipped.
func (s *Syncer) SyncGear(ctx context.Context) (Report, error) {
	return s.run(ctx, JobGear, func(ctx context.Context, st *runState) error {
		if s.cfg.ActivitiesDB == "" || s.cfg.GearDB == "" {
			return fmt.Errorf("gear: %w", ErrNotConfigured)
		}

		records, err := s.source.ListRecentActivities(ctx, 0, s.cfg.GearWindow)
		if err != nil {
			return fmt.Errorf("fetch activities: %w", err)
		}
		st.fetched = len(records)

		gear, err := s.gearIndex(ctx, st)
		if err != nil {
			return err
		}

		linker := s.linker()
		for _, rec := range records {
			s.linkGear(ctx, st, linker, gear, rec)
		}
		return nil
	})
}

func (s *Syncer) linkGear(ctx context.Context, st *runState, linker *reconcile.Linker, gear reconcile.Index, rec record.Record) {
	key, ok := reconcile.FirstID(rec, "activityId")
	if !ok {
		key = describe(rec)
	}

	equipmentID, ok := reconcile.FirstID(rec, gearPaths...)
	if !ok {
		s.note(ctx, st, journal.Entry{Key: key, Outcome: journal.Skipped, Reason: "no gear on activity"}, nil)
		return
	}

	name, _ := rec.String("activityName")
	timestamp, _ := rec.String("startTimeLocal")
	res, err := linker.Link(ctx, reconcile.LinkRequest{
		EquipmentID:  equipmentID,
		Timestamp:    timestamp,
		ActivityName: name,
	}, gear)
	switch {
	case errors.Is(err, reconcile.ErrLinkInput):
		s.note(ctx, st, journal.Entry{Key: key, Outcome: journal.Skipped, Reason: err.Error()}, nil)
		return
	case err != nil:
		s.note(ctx, st, journal.Entry{Key: key, Outcome: journal.Failed, Reason: err.Error()}, err)
		return
	}

	switch res.Outcome {
	case reconcile.UnknownGear:
		s.note(ctx, st, journal.Entry{Key: key, Outcome: journal.Skipped, Reason: fmt.Sprintf("gear %s not in gear database", equipmentID)}, nil)
	case reconcile.NoActivity:
		s.note(ctx, st, journal.Entry{Key: key, Outcome: journal.Skipped, Reason: "no mirrored activity matches date and name"}, nil)
	default:
		s.note(ctx, st, journal.Entry{Key: key, Outcome: journal.Linked, RowID: res.ActivityRowID, Ambiguous: res.Ambiguous}, nil)

		event := events.New(events.GearLinked, st.job, key)
		event.DatabaseID = s.cfg.ActivitiesDB
		event.RowID = res.ActivityRowID
		event.Ambiguous = res.Ambiguous
		s.publish(ctx, st, event)
	}
}
