// Package record models the loosely-typed payloads returned by the upstream fitness provider.
package record

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record is a decoded upstream JSON object. Its shape depends on the provider version and is
// never trusted: every read goes through Lookup.
type Record map[string]any

// Lookup resolves a dotted path ("activityType.typeKey") against nested objects. A JSON null is
// reported as absent.
func (r Record) Lookup(path string) (any, bool) {
	if r == nil || path == "" {
		return nil, false
	}
	if v, ok := r[path]; ok {
		return v, v != nil
	}

	var current any = map[string]any(r)
	for _, segment := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// String returns the value at path when it is a non-empty string.
func (r Record) String(path string) (string, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Record:
		return obj, true
	default:
		return nil, false
	}
}

// Decode parses a JSON object into a Record, keeping numbers as json.Number so large
// identifiers survive without float rounding.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out Record
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeList parses a JSON array of objects into Records.
func DecodeList(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		out = append(out, Record(item))
	}
	return out, nil
}
