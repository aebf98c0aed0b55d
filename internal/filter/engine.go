package filter

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
)

// Engine owns the mutable rule collection and answers classification queries.
// Readers are lock-free: Classify loads the current snapshot atomically, so a
// call in flight observes either the pre- or post-mutation set entirely.
// Mutations are serialized and use copy-and-swap.
type Engine struct {
	patternPrefix string

	mu      sync.Mutex // serializes Add/Remove/Reload
	snap    atomic.Pointer[ruleSet]
	nextSeq int
}

// NewEngine creates an engine with an empty rule set. patternPrefix marks
// pattern lines in rule sources (e.g. "regex:").
func NewEngine(patternPrefix string) *Engine {
	e := &Engine{patternPrefix: patternPrefix}
	e.snap.Store(emptyRuleSet())
	return e
}

// parseRule classifies a raw line as pattern or literal and builds the rule.
// Patterns are compiled case-insensitively, once.
func (e *Engine) parseRule(raw string, seq int) (*domain.Rule, error) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, e.patternPrefix); ok {
		src := strings.TrimSpace(rest)
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", domain.ErrInvalidPattern, src, err)
		}
		return &domain.Rule{
			Kind:    domain.RulePattern,
			Source:  e.patternPrefix + src,
			Pattern: re,
			Seq:     seq,
		}, nil
	}
	return &domain.Rule{
		Kind:    domain.RuleLiteral,
		Source:  raw,
		Literal: Normalize(raw),
		Seq:     seq,
	}, nil
}

// Add inserts one rule. Returns false without error if an equivalent rule is
// already present. A bad pattern returns ErrInvalidPattern and leaves the set
// unchanged.
func (e *Engine) Add(raw string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rule, err := e.parseRule(raw, e.nextSeq)
	if err != nil {
		return false, err
	}

	cur := e.snap.Load()
	if _, ok := cur.byID[rule.ID()]; ok {
		return false, nil
	}

	next := cur.clone()
	next.insert(rule)
	e.nextSeq++
	e.snap.Store(next)
	return true, nil
}

// Remove deletes a rule by its normalized literal or raw pattern source.
// Returns false if no such rule exists; absence is not an error.
func (e *Engine) Remove(raw string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw = strings.TrimSpace(raw)
	var id string
	if rest, ok := strings.CutPrefix(raw, e.patternPrefix); ok {
		id = e.patternPrefix + strings.TrimSpace(rest)
	} else {
		id = Normalize(raw)
	}

	cur := e.snap.Load()
	if _, ok := cur.byID[id]; !ok {
		return false
	}
	next := cur.clone()
	next.remove(id)
	e.snap.Store(next)
	return true
}

// Reload parses a newline-delimited rule source, builds a fresh set and swaps
// it in atomically. Blank lines and # comments are ignored. A line that fails
// to parse is skipped and counted; reload never fails wholesale for one bad
// line. Returns the number of loaded and skipped lines.
func (e *Engine) Reload(r io.Reader) (loaded, skipped int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := emptyRuleSet()
	seq := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, perr := e.parseRule(line, seq)
		if perr != nil {
			log.WithFields(log.Fields{
				"line": line,
				"err":  perr,
			}).Warn("skipping unparseable rule line")
			skipped++
			continue
		}
		if _, ok := next.byID[rule.ID()]; ok {
			continue
		}
		next.insert(rule)
		seq++
	}
	if serr := scanner.Err(); serr != nil {
		return 0, 0, fmt.Errorf("read rule source: %w", serr)
	}

	e.nextSeq = seq
	e.snap.Store(next)
	loaded = len(next.rules)
	return loaded, skipped, nil
}

// Classify normalizes the text and returns the first matching rule in
// insertion order, or NoMatch. Safe to call concurrently with itself and
// with Add/Remove/Reload.
func (e *Engine) Classify(text string) domain.MatchResult {
	if text == "" {
		return domain.NoMatch
	}
	snap := e.snap.Load()
	if len(snap.rules) == 0 {
		return domain.NoMatch
	}
	return snap.classify(text, Normalize(text))
}

// List returns the raw rule sources in insertion order
func (e *Engine) List() []string {
	snap := e.snap.Load()
	out := make([]string, 0, len(snap.rules))
	for _, r := range snap.rules {
		out = append(out, r.Source)
	}
	return out
}

// Len returns the current number of rules
func (e *Engine) Len() int {
	return len(e.snap.Load().rules)
}
