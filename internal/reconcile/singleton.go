package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// UpsertResult reports the row written by DailyUpserter. Matches counts the rows that already
// existed for the day, capped by the probe size; more than one means the sink already violated
// the one-row-per-day convention.
type UpsertResult struct {
	RowID   string
	Created bool
	Matches int
}

// DailyUpserter keeps at most one row per calendar date in a snapshot database.
type DailyUpserter struct {
	db sink.Database
}

// NewDailyUpserter constructs a DailyUpserter.
func NewDailyUpserter(db sink.Database) *DailyUpserter {
	return &DailyUpserter{db: db}
}

// Upsert creates the row for date when none exists, otherwise updates the first match the sink
// returns. The date property is always written. The existence check and the write are separate
// calls.
func (u *DailyUpserter) Upsert(ctx context.Context, databaseID, dateProperty, date string, props sink.Properties) (UpsertResult, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return UpsertResult{}, fmt.Errorf("snapshot date %q: %w", date, err)
	}

	res, err := u.db.QueryRows(ctx, databaseID, sink.Query{
		Filter:   sink.Where(dateProperty, sink.KindDate, sink.Equals, date),
		PageSize: 2,
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("find snapshot for %s: %w", date, err)
	}

	payload := make(sink.Properties, len(props)+1)
	for name, value := range props {
		payload[name] = value
	}
	payload[dateProperty] = sink.Date(date)

	if len(res.Rows) == 0 {
		id, err := u.db.CreateRow(ctx, databaseID, payload)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("create snapshot for %s: %w", date, err)
		}
		return UpsertResult{RowID: id, Created: true}, nil
	}

	matches := len(res.Rows)
	if res.HasMore {
		matches++
	}
	rowID := res.Rows[0].ID
	if err := u.db.UpdateRow(ctx, rowID, payload); err != nil {
		return UpsertResult{}, fmt.Errorf("update snapshot %s for %s: %w", rowID, date, err)
	}
	return UpsertResult{RowID: rowID, Matches: matches}, nil
}
