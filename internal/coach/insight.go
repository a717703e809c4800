package coach

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedInsight is returned when the completion is not the expected JSON object.
var ErrMalformedInsight = errors.New("malformed coaching insight")

// Score is the recovery rating chosen by the model.
type Score string

const (
	Good     Score = "Good"
	Moderate Score = "Moderate"
	Poor     Score = "Poor"
)

// Insight is the structured completion: exactly summary, score and action.
type Insight struct {
	Summary string `json:"summary"`
	Score   Score  `json:"score"`
	Action  string `json:"action"`
}

// ParseInsight decodes raw strictly. Unknown keys, trailing data, empty fields and scores
// outside Good/Moderate/Poor are all rejected.
func ParseInsight(raw string) (Insight, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(raw))))
	dec.DisallowUnknownFields()

	var in Insight
	if err := dec.Decode(&in); err != nil {
		return Insight{}, fmt.Errorf("%w: %w", ErrMalformedInsight, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Insight{}, fmt.Errorf("%w: trailing data after object", ErrMalformedInsight)
	}

	in.Summary = strings.TrimSpace(in.Summary)
	in.Action = strings.TrimSpace(in.Action)
	var missing []string
	if in.Summary == "" {
		missing = append(missing, "summary")
	}
	if in.Score == "" {
		missing = append(missing, "score")
	}
	if in.Action == "" {
		missing = append(missing, "action")
	}
	if len(missing) > 0 {
		return Insight{}, fmt.Errorf("%w: missing %s", ErrMalformedInsight, strings.Join(missing, ", "))
	}

	switch in.Score {
	case Good, Moderate, Poor:
	default:
		return Insight{}, fmt.Errorf("%w: score %q is not Good, Moderate or Poor", ErrMalformedInsight, in.Score)
	}
	return in, nil
}
