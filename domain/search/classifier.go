// Package search holds the decision rules behind tree-scoped question
// answering: how a query is classified, which context strategies exist and
// what a context is expected to cost.
package search

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Classifier makes two independent judgments about a query. Both may be
// false at once, which means the query is ambiguous.
type Classifier interface {
	RequiresFullContext(ctx context.Context, query string) (bool, error)
	IsSimple(ctx context.Context, query string) (bool, error)
}

// Classification is the label derived from the two judgments.
type Classification string

const (
	ClassificationAccuracyCritical Classification = "accuracy_critical"
	ClassificationSimple           Classification = "simple"
	ClassificationAmbiguous        Classification = "ambiguous"
)

// RuleKind tells which judgment a rule feeds.
type RuleKind int

const (
	RuleAccuracyCritical RuleKind = iota
	RuleSimple
)

// Rule is a named pure predicate over a normalised query.
type Rule struct {
	Name  string
	Kind  RuleKind
	Match func(q string) bool
}

// MaxSimpleWords caps how long a simple lookup may be.
const MaxSimpleWords = 8

var (
	whitespace    = regexp.MustCompile(`\s+`)
	stepReference = regexp.MustCompile(`\b(step|node|block|phase)\s*#?\d+\b`)
	lookupOpener  = regexp.MustCompile(`^(what|where|who|when|which)\s+(is|are|was|were|does|did)\b`)
	commandOpener = regexp.MustCompile(`^(define|show me|find|get|open|locate)\b`)
)

func containsAny(words ...string) func(string) bool {
	return func(q string) bool {
		// pad so markers like " vs " match at either end
		padded := " " + q + " "
		for _, w := range words {
			if strings.Contains(padded, w) {
				return true
			}
		}
		return false
	}
}

func matchesRegexp(re *regexp.Regexp) func(string) bool {
	return re.MatchString
}

var defaultRules = []Rule{
	{
		Name: "comparison",
		Kind: RuleAccuracyCritical,
		Match: containsAny("compare", "comparison", "contrast", " versus ", " vs ", " vs. ",
			"difference between", "differences between", "differ from", "similarities"),
	},
	{
		Name: "completeness",
		Kind: RuleAccuracyCritical,
		Match: containsAny("every ", "everything", "all of the", "entire", "whole tree", "whole workflow", "comprehensive",
			"complete list", "full list", "exhaustive", "summarize", "summarise", "summary of", "overview"),
	},
	{
		Name: "cross_cutting",
		Kind: RuleAccuracyCritical,
		Match: containsAny("consistency", "consistent", "inconsisten", "contradict", "across ",
			"throughout", "end to end", "end-to-end", "relationship between", "depend on each other"),
	},
	{
		Name:  "question_lookup",
		Kind:  RuleSimple,
		Match: matchesRegexp(lookupOpener),
	},
	{
		Name:  "step_reference",
		Kind:  RuleSimple,
		Match: matchesRegexp(stepReference),
	},
	{
		Name:  "command_lookup",
		Kind:  RuleSimple,
		Match: matchesRegexp(commandOpener),
	},
}

// NormalizeQuery lower-cases the query, collapses whitespace and strips
// trailing punctuation.
func NormalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = whitespace.ReplaceAllString(q, " ")
	return strings.TrimRight(q, "?!.,;: ")
}

// RuleClassifier classifies queries with a fixed rule table. It is
// deterministic and never returns an error.
type RuleClassifier struct {
	rules []Rule
}

// NewRuleClassifier returns a classifier over the default rule table.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{rules: defaultRules}
}

// Rules returns a copy of the rule table.
func (c *RuleClassifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// MatchedRules returns the names of the rules that fire for query.
func (c *RuleClassifier) MatchedRules(query string) []string {
	q := NormalizeQuery(query)
	var names []string
	for _, r := range c.rules {
		if r.Match(q) {
			names = append(names, r.Name)
		}
	}
	return names
}

// RequiresFullContext reports whether the query needs the whole tree.
func (c *RuleClassifier) RequiresFullContext(_ context.Context, query string) (bool, error) {
	return c.any(NormalizeQuery(query), RuleAccuracyCritical), nil
}

// IsSimple reports whether the query is a short single-intent lookup.
// Queries that also carry accuracy markers are never simple.
func (c *RuleClassifier) IsSimple(_ context.Context, query string) (bool, error) {
	q := NormalizeQuery(query)
	if q == "" || len(strings.Fields(q)) > MaxSimpleWords {
		return false, nil
	}
	if c.any(q, RuleAccuracyCritical) {
		return false, nil
	}
	return c.any(q, RuleSimple), nil
}

func (c *RuleClassifier) any(q string, kind RuleKind) bool {
	for _, r := range c.rules {
		if r.Kind == kind && r.Match(q) {
			return true
		}
	}
	return false
}

// Classify derives the label for query. A classifier error on either
// judgment counts as "no" for that judgment and is returned alongside the
// label so callers can log it.
func Classify(ctx context.Context, c Classifier, query string) (Classification, error) {
	full, fullErr := c.RequiresFullContext(ctx, query)
	if fullErr == nil && full {
		return ClassificationAccuracyCritical, nil
	}
	simple, simpleErr := c.IsSimple(ctx, query)
	err := errors.Join(fullErr, simpleErr)
	if simpleErr == nil && simple {
		return ClassificationSimple, err
	}
	return ClassificationAmbiguous, err
}
