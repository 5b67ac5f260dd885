package model

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// ScoreKind says how a Score was produced.
type ScoreKind string

const (
	ScoreFinite      ScoreKind = "finite"      // graph travel time to a well-served zone
	ScoreClosedForm  ScoreKind = "closed_form" // adequacy formula, no graph search
	ScoreUnreachable ScoreKind = "unreachable" // no well-served zone within the cutoff
)

// Score is the reachability result for one zone. Unreachable is an explicit
// kind rather than an infinite value, so it never takes part in arithmetic.
type Score struct {
	Kind  ScoreKind
	value float64
}

// Finite returns a graph-derived score.
func Finite(d float64) Score { return Score{Kind: ScoreFinite, value: d} }

// ClosedForm returns a formula-derived score.
func ClosedForm(v float64) Score { return Score{Kind: ScoreClosedForm, value: v} }

// Unreachable returns the unreachable score.
func Unreachable() Score { return Score{Kind: ScoreUnreachable} }

// IsReachable reports whether the score carries a number.
func (s Score) IsReachable() bool {
	return s.Kind == ScoreFinite || s.Kind == ScoreClosedForm
}

// Float returns the numeric value and false for unreachable scores.
func (s Score) Float() (float64, bool) {
	if !s.IsReachable() {
		return 0, false
	}
	return s.value, true
}

func (s Score) String() string {
	if v, ok := s.Float(); ok {
		return fmt.Sprintf("%.3f", v)
	}
	return string(ScoreUnreachable)
}

type scoreJSON struct {
	Kind  ScoreKind `json:"kind"`
	Value *float64  `json:"value"`
}

// MarshalJSON encodes unreachable scores with a null value.
func (s Score) MarshalJSON() ([]byte, error) {
	out := scoreJSON{Kind: s.Kind}
	if v, ok := s.Float(); ok {
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (s *Score) UnmarshalJSON(data []byte) error {
	var in scoreJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return eris.Wrap(err, "model: decode score")
	}
	switch in.Kind {
	case ScoreUnreachable:
		*s = Unreachable()
	case ScoreFinite, ScoreClosedForm:
		if in.Value == nil {
			return eris.Errorf("model: score kind %q requires a value", in.Kind)
		}
		*s = Score{Kind: in.Kind, value: *in.Value}
	default:
		return eris.Errorf("model: unknown score kind %q", in.Kind)
	}
	return nil
}

// ParseScore rebuilds a Score from its stored kind and nullable value.
func ParseScore(kind string, value *float64) (Score, error) {
	switch ScoreKind(kind) {
	case ScoreUnreachable:
		return Unreachable(), nil
	case ScoreFinite, ScoreClosedForm:
		if value == nil {
			return Score{}, eris.Errorf("model: score kind %q requires a value", kind)
		}
		return Score{Kind: ScoreKind(kind), value: *value}, nil
	default:
		return Score{}, eris.Errorf("model: unknown score kind %q", kind)
	}
}
