package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// ErrInvalidExternalID is returned when an identifier has no canonical string form.
var ErrInvalidExternalID = errors.New("external id is empty or not a scalar")

// Deduper answers whether an upstream record already has a mirror row.
type Deduper struct {
	db         sink.Database
	databaseID string
	property   string
}

// NewDeduper constructs a Deduper that matches property (a rich_text column) in databaseID.
func NewDeduper(db sink.Database, databaseID, property string) *Deduper {
	return &Deduper{db: db, databaseID: databaseID, property: property}
}

// Exists issues a single-result query for the canonical form of externalID.
func (d *Deduper) Exists(ctx context.Context, externalID any) (bool, error) {
	id, ok := CanonicalID(externalID)
	if !ok {
		return false, ErrInvalidExternalID
	}

	res, err := d.db.QueryRows(ctx, d.databaseID, sink.Query{
		Filter:   sink.Where(d.property, sink.KindRichText, sink.Equals, id),
		PageSize: 1,
	})
	if err != nil {
		return false, fmt.Errorf("dedup lookup for %s: %w", id, err)
	}
	return len(res.Rows) > 0, nil
}

// CanonicalID renders an identifier as the string the dedup column stores. Integral numbers are
// written without exponent or fraction so 12345678901 never becomes 1.2345678901e+10.
func CanonicalID(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(id)
		return s, s != ""
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		if f, err := id.Float64(); err == nil {
			return formatFloatID(f), true
		}
		s := id.String()
		return s, s != ""
	case float64:
		return formatFloatID(id), !math.IsNaN(id) && !math.IsInf(id, 0)
	case float32:
		return formatFloatID(float64(id)), true
	case int:
		return strconv.Itoa(id), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint:
		return strconv.FormatUint(uint64(id), 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	default:
		return "", false
	}
}

func formatFloatID(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FirstID returns the canonical form of the first present identifier among paths.
func FirstID(src Lookup, paths ...string) (string, bool) {
	for _, path := range paths {
		v, ok := src.Lookup(path)
		if !ok {
			continue
		}
		if id, ok := CanonicalID(v); ok {
			return id, true
		}
	}
	return "", false
}
