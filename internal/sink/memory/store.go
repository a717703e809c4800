// Package memory provides an in-process sink.Database used by tests and local dry runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// ErrRowNotFound is returned when updating or appending to an unknown row.
var ErrRowNotFound = errors.New("row not found")

const defaultPageSize = 100

// Store keeps rows per database in insertion order and paginates with offset cursors.
type Store struct {
	mu        sync.RWMutex
	pageSize  int
	databases map[string][]*sink.Row
	blocks    map[string][]sink.Block

	// QueryHook, when set, runs before every query; a non-nil error fails that page.
	QueryHook func(databaseID string, q sink.Query) error
	// WriteHook, when set, runs before every create or update.
	WriteHook func(op string, props sink.Properties) error

	queries int
	creates int
	updates int
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize caps the number of rows returned per page.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewStore constructs an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		pageSize:  defaultPageSize,
		databases: make(map[string][]*sink.Row),
		blocks:    make(map[string][]sink.Block),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert seeds a row without going through hooks or counters.
func (s *Store) Insert(databaseID string, props sink.Properties) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(databaseID, props)
}

func (s *Store) insertLocked(databaseID string, props sink.Properties) string {
	row := &sink.Row{ID: uuid.NewString(), Properties: cloneProps(props)}
	s.databases[databaseID] = append(s.databases[databaseID], row)
	return row.ID
}

// QueryRows implements sink.Database.
func (s *Store) QueryRows(_ context.Context, databaseID string, q sink.Query) (*sink.Result, error) {
	if s.QueryHook != nil {
		if err := s.QueryHook(databaseID, q); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.queries++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]sink.Row, 0)
	for _, row := range s.databases[databaseID] {
		if q.Filter == nil || matches(*row, *q.Filter) {
			matched = append(matched, sink.Row{ID: row.ID, Properties: cloneProps(row.Properties)})
		}
	}
	applySorts(matched, q.Sorts)

	offset := 0
	if q.Cursor != "" {
		parsed, err := strconv.Atoi(q.Cursor)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid cursor %q", q.Cursor)
		}
		offset = parsed
	}
	if offset > len(matched) {
		offset = len(matched)
	}

	size := s.pageSize
	if q.PageSize > 0 && q.PageSize < size {
		size = q.PageSize
	}
	end := offset + size
	if end > len(matched) {
		end = len(matched)
	}

	result := &sink.Result{Rows: matched[offset:end]}
	if end < len(matched) {
		result.HasMore = true
		result.NextCursor = strconv.Itoa(end)
	}
	return result, nil
}

// CreateRow implements sink.Database.
func (s *Store) CreateRow(_ context.Context, databaseID string, props sink.Properties) (string, error) {
	if s.WriteHook != nil {
		if err := s.WriteHook("create", props); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	return s.insertLocked(databaseID, props), nil
}

// UpdateRow implements sink.Database. Given properties replace existing ones; others are kept.
func (s *Store) UpdateRow(_ context.Context, rowID string, props sink.Properties) error {
	if s.WriteHook != nil {
		if err := s.WriteHook("update", props); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.findLocked(rowID)
	if row == nil {
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	for name, value := range props {
		row.Properties[name] = cloneValue(value)
	}
	s.updates++
	return nil
}

// AppendBlocks implements sink.Database.
func (s *Store) AppendBlocks(_ context.Context, rowID string, blocks []sink.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(rowID) == nil {
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	s.blocks[rowID] = append(s.blocks[rowID], blocks...)
	return nil
}

// Rows returns a copy of every row in a database, in insertion order.
func (s *Store) Rows(databaseID string) []sink.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sink.Row, 0, len(s.databases[databaseID]))
	for _, row := range s.databases[databaseID] {
		out = append(out, sink.Row{ID: row.ID, Properties: cloneProps(row.Properties)})
	}
	return out
}

// Row returns a copy of a single row.
func (s *Store) Row(rowID string) (sink.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.findLocked(rowID)
	if row == nil {
		return sink.Row{}, false
	}
	return sink.Row{ID: row.ID, Properties: cloneProps(row.Properties)}, true
}

// Blocks returns the blocks appended to a row.
func (s *Store) Blocks(rowID string) []sink.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]sink.Block(nil), s.blocks[rowID]...)
}

// Counts reports how many queries, creates and updates were served.
func (s *Store) Counts() (queries, creates, updates int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries, s.creates, s.updates
}

func (s *Store) findLocked(rowID string) *sink.Row {
	for _, rows := range s.databases {
		for _, row := range rows {
			if row.ID == rowID {
				return row
			}
		}
	}
	return nil
}

func matches(row sink.Row, f sink.Filter) bool {
	if len(f.And) > 0 {
		for _, sub := range f.And {
			if !matches(row, sub) {
				return false
			}
		}
		return true
	}

	v, ok := row.Properties[f.Property]
	if !ok {
		return false
	}
	want := fmt.Sprint(f.Value)

	switch f.Condition {
	case sink.Equals:
		switch v.Kind {
		case sink.KindDate:
			return datePart(v.Date) == datePart(want)
		case sink.KindNumber:
			n, err := strconv.ParseFloat(want, 64)
			return err == nil && n == v.Number
		default:
			return v.PlainText() == want
		}
	case sink.OnOrAfter:
		return v.Kind == sink.KindDate && v.Date != "" && datePart(v.Date) >= datePart(want)
	case sink.Contains:
		if v.Kind == sink.KindRelation {
			for _, id := range v.Relation {
				if id == want {
					return true
				}
			}
			return false
		}
		return strings.Contains(strings.ToLower(v.PlainText()), strings.ToLower(want))
	default:
		return false
	}
}

func applySorts(rows []sink.Row, sorts []sink.Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sorts {
			a, b := rows[i].Properties[s.Property], rows[j].Properties[s.Property]
			cmp := compare(a, b)
			if cmp == 0 {
				continue
			}
			if s.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compare(a, b sink.Value) int {
	if a.Kind == sink.KindNumber && b.Kind == sink.KindNumber {
		switch {
		case a.Number < b.Number:
			return -1
		case a.Number > b.Number:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.PlainText(), b.PlainText())
}

func datePart(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func cloneProps(props sink.Properties) sink.Properties {
	out := make(sink.Properties, len(props))
	for k, v := range props {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v sink.Value) sink.Value {
	if v.Relation != nil {
		v.Relation = append([]string(nil), v.Relation...)
	}
	return v
}
