package search

import (
	"errors"
	"fmt"
	"math"
)

// SearchOptions bounds a semantic fetch.
type SearchOptions struct {
	MaxNodes            int     `yaml:"max_nodes" json:"max_nodes"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	IncludeDependencies bool    `yaml:"include_dependencies" json:"include_dependencies"`
}

// Validate checks the bounds are usable.
func (o SearchOptions) Validate() error {
	if o.MaxNodes <= 0 {
		return errors.New("max_nodes must be positive")
	}
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold >= 1 {
		return errors.New("similarity_threshold must be in [0, 1)")
	}
	return nil
}

// CostRates prices a generation call in USD.
type CostRates struct {
	InputPer1KTokens  float64 `yaml:"input_per_1k_tokens" json:"input_per_1k_tokens"`
	OutputPer1KTokens float64 `yaml:"output_per_1k_tokens" json:"output_per_1k_tokens"`
	ExpectedOutput    int     `yaml:"expected_output_tokens" json:"expected_output_tokens"`
	CharsPerToken     int     `yaml:"chars_per_token" json:"chars_per_token"`
}

// Tuning is the full set of knobs behind strategy selection.
type Tuning struct {
	SmallTreeThreshold int           `yaml:"small_tree_threshold" json:"small_tree_threshold"`
	SimpleQuery        SearchOptions `yaml:"simple_query" json:"simple_query"`
	AmbiguousQuery     SearchOptions `yaml:"ambiguous_query" json:"ambiguous_query"`
	Cost               CostRates     `yaml:"cost" json:"cost"`
}

// DefaultTuning returns the built-in values.
func DefaultTuning() Tuning {
	return Tuning{
		SmallTreeThreshold: 50,
		SimpleQuery: SearchOptions{
			MaxNodes:            15,
			SimilarityThreshold: 0.70,
			IncludeDependencies: false,
		},
		AmbiguousQuery: SearchOptions{
			MaxNodes:            30,
			SimilarityThreshold: 0.55,
			IncludeDependencies: true,
		},
		Cost: CostRates{
			InputPer1KTokens:  0.000075,
			OutputPer1KTokens: 0.0003,
			ExpectedOutput:    512,
			CharsPerToken:     4,
		},
	}
}

// Validate checks every knob.
func (t Tuning) Validate() error {
	if t.SmallTreeThreshold < 0 {
		return errors.New("small_tree_threshold cannot be negative")
	}
	if err := t.SimpleQuery.Validate(); err != nil {
		return fmt.Errorf("simple_query: %w", err)
	}
	if err := t.AmbiguousQuery.Validate(); err != nil {
		return fmt.Errorf("ambiguous_query: %w", err)
	}
	if t.Cost.CharsPerToken <= 0 {
		return errors.New("cost.chars_per_token must be positive")
	}
	if t.Cost.InputPer1KTokens < 0 || t.Cost.OutputPer1KTokens < 0 || t.Cost.ExpectedOutput < 0 {
		return errors.New("cost rates cannot be negative")
	}
	return nil
}

// EstimateTokens converts a character count into tokens, rounding up.
func (t Tuning) EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	per := t.Cost.CharsPerToken
	if per <= 0 {
		per = 4
	}
	return (chars + per - 1) / per
}

// EstimateCost prices one answer over a context of contextChars plus the
// query and history text. The result is rounded to six decimals.
func (t Tuning) EstimateCost(contextChars, queryChars, historyChars int) float64 {
	input := t.EstimateTokens(contextChars + queryChars + historyChars)
	cost := float64(input)/1000*t.Cost.InputPer1KTokens +
		float64(t.Cost.ExpectedOutput)/1000*t.Cost.OutputPer1KTokens
	return math.Round(cost*1e6) / 1e6
}
