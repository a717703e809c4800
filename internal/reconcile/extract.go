package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// ErrMissingField matches any *MissingFieldError via errors.Is.
var ErrMissingField = errors.New("missing required field")

// MissingFieldError lists the required properties that resolved to nothing.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

// Unwrap allows errors.Is(err, ErrMissingField).
func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// Lookup is anything values can be pulled out of by path: upstream records use dotted paths,
// sink rows use property names.
type Lookup interface {
	Lookup(path string) (any, bool)
}

// Nullability decides what happens when a rule resolves to nothing.
type Nullability int

const (
	// Optional rules are omitted from the property set when absent.
	Optional Nullability = iota
	// Required rules fail the whole extraction when absent.
	Required
	// OmitZero rules are optional and additionally treat 0 and "" as absent.
	OmitZero
)

// Transform normalises a raw value. Returning false marks the value absent.
type Transform func(any) (any, bool)

// Rule extracts one property. Paths are tried in order; the first present value wins.
type Rule struct {
	Property  string
	Kind      sink.Kind
	Paths     []string
	Transform Transform
	Policy    Nullability
}

// Plan is an ordered set of rules.
type Plan []Rule

// Extract builds a property set from src. Absent values never appear in the result, not even as
// an explicit null. All missing required fields are reported together.
func Extract(src Lookup, plan Plan) (sink.Properties, error) {
	props := make(sink.Properties, len(plan))
	var missing []string

	for _, rule := range plan {
		value, ok := resolve(src, rule)
		if !ok {
			if rule.Policy == Required {
				missing = append(missing, rule.Property)
			}
			continue
		}
		props[rule.Property] = value
	}

	if len(missing) > 0 {
		return nil, &MissingFieldError{Fields: missing}
	}
	return props, nil
}

func resolve(src Lookup, rule Rule) (sink.Value, bool) {
	for _, path := range rule.Paths {
		raw, ok := src.Lookup(path)
		if !ok || raw == nil {
			continue
		}
		if rule.Transform != nil {
			raw, ok = rule.Transform(raw)
			if !ok {
				continue
			}
		}
		value, ok := toValue(rule.Kind, raw)
		if !ok {
			continue
		}
		if rule.Policy == OmitZero && isZero(value) {
			continue
		}
		return value, true
	}
	return sink.Value{}, false
}

func toValue(kind sink.Kind, raw any) (sink.Value, bool) {
	switch kind {
	case sink.KindNumber:
		f, ok := ToFloat(raw)
		if !ok {
			return sink.Value{}, false
		}
		return sink.Number(f), true
	case sink.KindDate:
		s, ok := toText(raw)
		if !ok {
			return sink.Value{}, false
		}
		return sink.Date(s), true
	case sink.KindRelation:
		switch ids := raw.(type) {
		case []string:
			if len(ids) == 0 {
				return sink.Value{}, false
			}
			return sink.Relation(ids...), true
		default:
			id, ok := CanonicalID(raw)
			if !ok {
				return sink.Value{}, false
			}
			return sink.Relation(id), true
		}
	case sink.KindTitle, sink.KindRichText, sink.KindSelect:
		s, ok := toText(raw)
		if !ok {
			return sink.Value{}, false
		}
		return sink.Value{Kind: kind, Text: s}, true
	default:
		return sink.Value{}, false
	}
}

func isZero(v sink.Value) bool {
	switch v.Kind {
	case sink.KindNumber:
		return v.Number == 0
	default:
		return v.PlainText() == ""
	}
}

func toText(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case bool:
		return strconv.FormatBool(v), true
	default:
		return CanonicalID(raw)
	}
}

// ToFloat coerces JSON numbers, Go numerics and numeric strings.
func ToFloat(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// MetersToKilometers divides by 1000 and rounds to two decimals.
func MetersToKilometers(raw any) (any, bool) {
	m, ok := ToFloat(raw)
	if !ok {
		return nil, false
	}
	return math.Round(m/1000*100) / 100, true
}

// Rounded rounds a numeric value to the given number of decimals.
func Rounded(decimals int) Transform {
	scale := math.Pow(10, float64(decimals))
	return func(raw any) (any, bool) {
		f, ok := ToFloat(raw)
		if !ok {
			return nil, false
		}
		return math.Round(f*scale) / scale, true
	}
}

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
}

// ParseLocal parses the provider's local date-time formats.
func ParseLocal(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// LocalDateTime converts "2023-01-01 10:00:00" into ISO-8601 "2023-01-01T10:00:00". Values that
// already carry a zone keep it; date-only values stay dates.
func LocalDateTime(raw any) (any, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return s, true
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s, true
	}
	t, ok := ParseLocal(s)
	if !ok {
		return nil, false
	}
	return t.Format("2006-01-02T15:04:05"), true
}

// DateOnly reduces a local date-time to its calendar date.
func DateOnly(raw any) (any, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	t, ok := ParseLocal(s)
	if !ok {
		return nil, false
	}
	return t.Format("2006-01-02"), true
}

// CanonicalText stores identifiers in their canonical string form.
func CanonicalText(raw any) (any, bool) {
	id, ok := CanonicalID(raw)
	if !ok {
		return nil, false
	}
	return id, true
}
