// Package sink describes the workspace database the mirror writes into: typed row properties,
// the filter grammar accepted by its paged query, and the Database port implemented by the
// Notion client and the in-memory store used in tests.
package sink

import (
	"context"
	"strconv"
	"strings"
)

// Kind identifies the type of a row property.
type Kind string

const (
	KindTitle    Kind = "title"
	KindRichText Kind = "rich_text"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindSelect   Kind = "select"
	KindRelation Kind = "relation"
)

// Value is a single typed property value.
type Value struct {
	Kind     Kind
	Text     string
	Number   float64
	Date     string
	Relation []string
}

// Title builds a title value.
func Title(s string) Value { return Value{Kind: KindTitle, Text: s} }

// RichText builds a plain rich_text value.
func RichText(s string) Value { return Value{Kind: KindRichText, Text: s} }

// Number builds a number value.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// Date builds a date value from an ISO-8601 date or date-time.
func Date(s string) Value { return Value{Kind: KindDate, Date: s} }

// Select builds a single-select value.
func Select(name string) Value { return Value{Kind: KindSelect, Text: name} }

// Relation builds a relation value referencing the given row ids.
func Relation(ids ...string) Value {
	return Value{Kind: KindRelation, Relation: append([]string(nil), ids...)}
}

// PlainText renders the value the way a filter comparison sees it.
func (v Value) PlainText() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindDate:
		return v.Date
	case KindRelation:
		return strings.Join(v.Relation, ",")
	default:
		return v.Text
	}
}

// Scalar returns the Go value carried by v: float64 for numbers, []string for relations and
// string otherwise.
func (v Value) Scalar() any {
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindDate:
		return v.Date
	case KindRelation:
		return v.Relation
	default:
		return v.Text
	}
}

// Properties is the property set sent with a create or update.
type Properties map[string]Value

// Row is a sink row as returned by a query.
type Row struct {
	ID         string
	Properties Properties
}

// Lookup exposes row properties by name. Empty text and empty relations are absent, matching how
// the sink reports unset columns.
func (r Row) Lookup(name string) (any, bool) {
	v, ok := r.Properties[name]
	if !ok {
		return nil, false
	}
	switch v.Kind {
	case KindNumber:
		return v.Number, true
	case KindDate:
		return v.Date, v.Date != ""
	case KindRelation:
		return v.Relation, len(v.Relation) > 0
	default:
		return v.Text, v.Text != ""
	}
}

// Condition is a comparison supported by the filter grammar.
type Condition string

const (
	Equals    Condition = "equals"
	OnOrAfter Condition = "on_or_after"
	Contains  Condition = "contains"
)

// Filter is either a property comparison or, when And is non-empty, a conjunction.
type Filter struct {
	Property  string
	Kind      Kind
	Condition Condition
	Value     any
	And       []Filter
}

// Where builds a property comparison.
func Where(property string, kind Kind, cond Condition, value any) *Filter {
	return &Filter{Property: property, Kind: kind, Condition: cond, Value: value}
}

// AllOf builds a conjunction.
func AllOf(filters ...Filter) *Filter {
	return &Filter{And: filters}
}

// Sort orders query results by a property.
type Sort struct {
	Property   string
	Descending bool
}

// Query describes one page request. A zero PageSize leaves the page size to the sink.
type Query struct {
	Filter   *Filter
	Sorts    []Sort
	Cursor   string
	PageSize int
}

// Result is one page of query results.
type Result struct {
	Rows       []Row
	HasMore    bool
	NextCursor string
}

// BlockType identifies a content block appended to a row's page.
type BlockType string

const (
	BlockHeading3 BlockType = "heading_3"
	BlockImage    BlockType = "image"
)

// Block is a page content block.
type Block struct {
	Type BlockType
	Text string
	URL  string
}

// Database is the sink port.
type Database interface {
	QueryRows(ctx context.Context, databaseID string, q Query) (*Result, error)
	CreateRow(ctx context.Context, databaseID string, props Properties) (string, error)
	UpdateRow(ctx context.Context, rowID string, props Properties) error
	AppendBlocks(ctx context.Context, rowID string, blocks []Block) error
}
