package domain

import "regexp"

// RuleKind distinguishes literal substring rules from pattern rules
type RuleKind int

const (
	// RuleLiteral matches by substring containment after normalization
	RuleLiteral RuleKind = iota
	// RulePattern matches by regexp search, never normalized
	RulePattern
)

func (k RuleKind) String() string {
	if k == RulePattern {
		return "pattern"
	}
	return "literal"
}

// Rule represents a single match rule
type Rule struct {
	Kind    RuleKind
	Source  string         // raw line as authored
	Literal string         // normalized text, set for RuleLiteral
	Pattern *regexp.Regexp // compiled once, set for RulePattern
	Seq     int            // insertion order, for stable listing and first-match-wins
}

// ID returns the rule identity: the normalized literal or the raw pattern source
func (r *Rule) ID() string {
	if r.Kind == RulePattern {
		return r.Source
	}
	return r.Literal
}

// MatchResult is the outcome of classifying a message text.
// Span offsets refer to the form of the text the rule kind matches against:
// the normalized text for literal rules, the raw text for pattern rules.
type MatchResult struct {
	Matched    bool
	RuleID     string
	RuleSource string
	Kind       RuleKind
	Start      int
	End        int
}

// NoMatch is the zero classification result
var NoMatch = MatchResult{}
