// Package reconcile holds the idempotent mirroring engine: paged index building, external-id
// deduplication, schema-tolerant extraction, the best-effort activity/gear join and the daily
// singleton upsert.
//
// Every check-then-act sequence here (exists-then-create, find-day-then-create) assumes a
// single writer. Two overlapping runs can both observe "absent" and both create a row.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// ErrCursorStalled is returned when the sink hands back a cursor it already issued.
var ErrCursorStalled = errors.New("pagination cursor did not advance")

// Index maps the plain-text value of a key property to the row id holding it.
type Index map[string]string

// RowID returns the row id indexed under key.
func (i Index) RowID(key string) (string, bool) {
	id, ok := i[strings.TrimSpace(key)]
	return id, ok
}

// ScanRows walks every page of q, calling fn for each row in order. It follows the continuation
// cursor until the sink reports no further pages or returns an empty cursor. A repeated cursor
// fails the scan instead of looping.
func ScanRows(ctx context.Context, db sink.Database, databaseID string, q sink.Query, fn func(sink.Row) error) error {
	q.Cursor = ""
	seen := make(map[string]struct{})
	for page := 1; ; page++ {
		res, err := db.QueryRows(ctx, databaseID, q)
		if err != nil {
			return fmt.Errorf("query %s page %d: %w", databaseID, page, err)
		}
		for _, row := range res.Rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		if !res.HasMore || res.NextCursor == "" {
			return nil
		}
		if _, dup := seen[res.NextCursor]; dup {
			return fmt.Errorf("query %s page %d: %w", databaseID, page, ErrCursorStalled)
		}
		seen[res.NextCursor] = struct{}{}
		q.Cursor = res.NextCursor
	}
}

// BuildIndex reads every row matching filter and maps keyProperty to row id. Rows with an empty
// key are skipped; when several rows share a key the first one returned wins. A failure on any
// page discards the partial index.
func BuildIndex(ctx context.Context, db sink.Database, databaseID string, filter *sink.Filter, keyProperty string) (Index, error) {
	index := make(Index)
	err := ScanRows(ctx, db, databaseID, sink.Query{Filter: filter}, func(row sink.Row) error {
		key := strings.TrimSpace(row.Properties[keyProperty].PlainText())
		if key == "" {
			return nil
		}
		if _, seen := index[key]; !seen {
			index[key] = row.ID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build index on %q: %w", keyProperty, err)
	}
	return index, nil
}
