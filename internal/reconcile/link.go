package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// ErrLinkInput is returned when a link request lacks the date or name needed for the lookup.
var ErrLinkInput = errors.New("link request needs an equipment id, a parseable timestamp and a name")

// LinkOutcome classifies a link attempt.
type LinkOutcome string

const (
	// Linked means the activity row now references the gear row.
	Linked LinkOutcome = "linked"
	// UnknownGear means the equipment id has no row in the gear database.
	UnknownGear LinkOutcome = "unknown_gear"
	// NoActivity means no activity row matched the date and name.
	NoActivity LinkOutcome = "no_activity"
)

// LinkRequest identifies the equipment and the activity it belongs to. Timestamp and
// ActivityName are approximate join keys, not identifiers.
type LinkRequest struct {
	EquipmentID  string
	Timestamp    string
	ActivityName string
}

// LinkResult reports what Link did. Ambiguous is set when more than one activity row matched;
// the first one returned by the sink was linked.
type LinkResult struct {
	Outcome       LinkOutcome
	ActivityRowID string
	GearRowID     string
	Ambiguous     bool
}

// LinkerConfig names the activities database columns used by the join.
type LinkerConfig struct {
	ActivitiesDB     string
	DateProperty     string
	NameProperty     string
	RelationProperty string
}

// Linker attaches gear rows to activity rows by date and name containment. There is no
// upstream key shared by both record types, so the match is best effort.
type Linker struct {
	db  sink.Database
	cfg LinkerConfig
}

// NewLinker constructs a Linker.
func NewLinker(db sink.Database, cfg LinkerConfig) *Linker {
	return &Linker{db: db, cfg: cfg}
}

// Link resolves the activity row for req and overwrites its relation property with the gear
// row from gear. Misses are reported through the outcome, not as errors.
func (l *Linker) Link(ctx context.Context, req LinkRequest, gear Index) (LinkResult, error) {
	equipmentID := strings.TrimSpace(req.EquipmentID)
	name := strings.TrimSpace(req.ActivityName)
	date, ok := DateOnly(req.Timestamp)
	if equipmentID == "" || name == "" || !ok {
		return LinkResult{}, ErrLinkInput
	}

	gearRowID, ok := gear.RowID(equipmentID)
	if !ok {
		return LinkResult{Outcome: UnknownGear}, nil
	}

	res, err := l.db.QueryRows(ctx, l.cfg.ActivitiesDB, sink.Query{
		Filter: sink.AllOf(
			*sink.Where(l.cfg.DateProperty, sink.KindDate, sink.Equals, date),
			*sink.Where(l.cfg.NameProperty, sink.KindTitle, sink.Contains, name),
		),
		PageSize: 2,
	})
	if err != nil {
		return LinkResult{}, fmt.Errorf("find activity %q on %s: %w", name, date, err)
	}
	if len(res.Rows) == 0 {
		return LinkResult{Outcome: NoActivity, GearRowID: gearRowID}, nil
	}

	result := LinkResult{
		Outcome:       Linked,
		ActivityRowID: res.Rows[0].ID,
		GearRowID:     gearRowID,
		Ambiguous:     len(res.Rows) > 1 || res.HasMore,
	}

	// Replaces whatever relation the row held before.
	if err := l.db.UpdateRow(ctx, result.ActivityRowID, sink.Properties{
		l.cfg.RelationProperty: sink.Relation(gearRowID),
	}); err != nil {
		return LinkResult{}, fmt.Errorf("set %s on %s: %w", l.cfg.RelationProperty, result.ActivityRowID, err)
	}
	return result, nil
}
