package search

import (
	"encoding/json"
	"fmt"
)

// Strategy names how the context for an answer was assembled.
type Strategy int

const (
	StrategyFullSmallTree Strategy = iota + 1
	StrategyFullAccuracyCritical
	StrategySemantic
	StrategySemanticConservative
	StrategyFullFallbackEmpty
	StrategyFullFallbackError
)

var strategyLabels = map[Strategy]string{
	StrategyFullSmallTree:        "full_small_tree",
	StrategyFullAccuracyCritical: "full_accuracy_critical",
	StrategySemantic:             "semantic",
	StrategySemanticConservative: "semantic_conservative",
	StrategyFullFallbackEmpty:    "full_fallback_empty",
	StrategyFullFallbackError:    "full_fallback_error",
}

// String returns the wire label.
func (s Strategy) String() string {
	if label, ok := strategyLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a wire label back onto a Strategy.
func ParseStrategy(label string) (Strategy, error) {
	for s, l := range strategyLabels {
		if l == label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown context strategy %q", label)
}

// IsSemantic reports whether the strategy used narrowed context.
func (s Strategy) IsSemantic() bool {
	return s == StrategySemantic || s == StrategySemanticConservative
}

// IsFallback reports whether a semantic attempt fell back to full context.
func (s Strategy) IsFallback() bool {
	return s == StrategyFullFallbackEmpty || s == StrategyFullFallbackError
}

// MarshalJSON encodes the strategy as its label.
func (s Strategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a label.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseStrategy(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
