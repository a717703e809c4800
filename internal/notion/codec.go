package notion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tiesklinkhamer/garmin-to-notion/internal/sink"
)

// ErrUnsupported is returned for filters, properties or blocks the encoder cannot express.
var ErrUnsupported = errors.New("unsupported by notion encoder")

type queryResponse struct {
	Results    []pageObject `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor *string      `json:"next_cursor"`
}

type pageObject struct {
	ID         string                   `json:"id"`
	Properties map[string]propertyValue `json:"properties"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type propertyValue struct {
	Type     string     `json:"type"`
	Title    []richText `json:"title"`
	RichText []richText `json:"rich_text"`
	Number   *float64   `json:"number"`
	Date     *struct {
		Start string `json:"start"`
	} `json:"date"`
	Select *struct {
		Name string `json:"name"`
	} `json:"select"`
	Relation []struct {
		ID string `json:"id"`
	} `json:"relation"`
}

func decodePage(p pageObject) sink.Row {
	row := sink.Row{ID: p.ID, Properties: make(sink.Properties, len(p.Properties))}
	for name, prop := range p.Properties {
		if v, ok := decodeProperty(prop); ok {
			row.Properties[name] = v
		}
	}
	return row
}

// decodeProperty maps the subset of property types the mirror reads. Null values and other
// types are dropped so lookups see them as absent.
func decodeProperty(p propertyValue) (sink.Value, bool) {
	switch sink.Kind(p.Type) {
	case sink.KindTitle:
		return sink.Title(joinPlain(p.Title)), true
	case sink.KindRichText:
		return sink.RichText(joinPlain(p.RichText)), true
	case sink.KindNumber:
		if p.Number == nil {
			return sink.Value{}, false
		}
		return sink.Number(*p.Number), true
	case sink.KindDate:
		if p.Date == nil {
			return sink.Value{}, false
		}
		return sink.Date(p.Date.Start), true
	case sink.KindSelect:
		if p.Select == nil {
			return sink.Value{}, false
		}
		return sink.Select(p.Select.Name), true
	case sink.KindRelation:
		ids := make([]string, 0, len(p.Relation))
		for _, rel := range p.Relation {
			ids = append(ids, rel.ID)
		}
		return sink.Relation(ids...), true
	default:
		return sink.Value{}, false
	}
}

func joinPlain(parts []richText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.PlainText)
	}
	return b.String()
}

func textContent(s string) []map[string]any {
	return []map[string]any{{"type": "text", "text": map[string]any{"content": s}}}
}

func encodeProperties(props sink.Properties) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for name, v := range props {
		switch v.Kind {
		case sink.KindTitle:
			out[name] = map[string]any{"title": textContent(v.Text)}
		case sink.KindRichText:
			out[name] = map[string]any{"rich_text": textContent(v.Text)}
		case sink.KindNumber:
			out[name] = map[string]any{"number": v.Number}
		case sink.KindDate:
			out[name] = map[string]any{"date": map[string]any{"start": v.Date}}
		case sink.KindSelect:
			out[name] = map[string]any{"select": map[string]any{"name": v.Text}}
		case sink.KindRelation:
			rel := make([]map[string]any, 0, len(v.Relation))
			for _, id := range v.Relation {
				rel = append(rel, map[string]any{"id": id})
			}
			out[name] = map[string]any{"relation": rel}
		default:
			return nil, fmt.Errorf("%w: property %q of kind %q", ErrUnsupported, name, v.Kind)
		}
	}
	return out, nil
}

func encodeFilter(f sink.Filter) (map[string]any, error) {
	if len(f.And) > 0 {
		clauses := make([]map[string]any, 0, len(f.And))
		for _, sub := range f.And {
			clause, err := encodeFilter(sub)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		}
		return map[string]any{"and": clauses}, nil
	}

	switch f.Condition {
	case sink.Equals, sink.OnOrAfter, sink.Contains:
	default:
		return nil, fmt.Errorf("%w: condition %q", ErrUnsupported, f.Condition)
	}
	if f.Kind == "" || f.Property == "" {
		return nil, fmt.Errorf("%w: filter without property or kind", ErrUnsupported)
	}
	return map[string]any{
		"property":     f.Property,
		string(f.Kind): map[string]any{string(f.Condition): f.Value},
	}, nil
}

func encodeSorts(sorts []sink.Sort) []map[string]any {
	out := make([]map[string]any, 0, len(sorts))
	for _, s := range sorts {
		direction := "ascending"
		if s.Descending {
			direction = "descending"
		}
		out = append(out, map[string]any{"property": s.Property, "direction": direction})
	}
	return out
}

func encodeBlocks(blocks []sink.Block) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case sink.BlockHeading3:
			out = append(out, map[string]any{
				"object":    "block",
				"type":      "heading_3",
				"heading_3": map[string]any{"rich_text": textContent(b.Text)},
			})
		case sink.BlockImage:
			out = append(out, map[string]any{
				"object": "block",
				"type":   "image",
				"image": map[string]any{
					"type":     "external",
					"external": map[string]any{"url": b.URL},
				},
			})
		default:
			return nil, fmt.Errorf("%w: block %q", ErrUnsupported, b.Type)
		}
	}
	return out, nil
}
