package filter

import (
	"strings"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
)

// ruleSet is one immutable snapshot of the rule collection. Mutations build a
// new snapshot and swap it in; classify reads whichever snapshot it loaded,
// never a torn one.
type ruleSet struct {
	rules []*domain.Rule // insertion order
	byID  map[string]*domain.Rule
}

func emptyRuleSet() *ruleSet {
	return &ruleSet{byID: make(map[string]*domain.Rule)}
}

// clone makes a shallow copy suitable for copy-and-swap mutation. Rules
// themselves are immutable once inserted.
func (s *ruleSet) clone() *ruleSet {
	next := &ruleSet{
		rules: make([]*domain.Rule, len(s.rules)),
		byID:  make(map[string]*domain.Rule, len(s.byID)),
	}
	copy(next.rules, s.rules)
	for id, r := range s.byID {
		next.byID[id] = r
	}
	return next
}

func (s *ruleSet) insert(r *domain.Rule) {
	s.rules = append(s.rules, r)
	s.byID[r.ID()] = r
}

func (s *ruleSet) remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, r := range s.rules {
		if r.ID() == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			break
		}
	}
	return true
}

// classify tests the normalized text against every rule in insertion order
// and returns the first match. Literal rules match by containment, pattern
// rules by search against the raw text.
func (s *ruleSet) classify(raw, normalized string) domain.MatchResult {
	for _, r := range s.rules {
		switch r.Kind {
		case domain.RuleLiteral:
			if idx := strings.Index(normalized, r.Literal); idx >= 0 {
				return domain.MatchResult{
					Matched:    true,
					RuleID:     r.ID(),
					RuleSource: r.Source,
					Kind:       r.Kind,
					Start:      idx,
					End:        idx + len(r.Literal),
				}
			}
		case domain.RulePattern:
			if loc := r.Pattern.FindStringIndex(raw); loc != nil {
				return domain.MatchResult{
					Matched:    true,
					RuleID:     r.ID(),
					RuleSource: r.Source,
					Kind:       r.Kind,
					Start:      loc[0],
					End:        loc[1],
				}
			}
		}
	}
	return domain.NoMatch
}
