package repo

import (
	"context"
	"io"
)

// RuleSourceRepo persists the rule list between restarts as line-oriented
// text (one rule per line, # comments, patterns marked by prefix)
type RuleSourceRepo interface {
	// Load opens the rule source for reading. A missing source yields an
	// empty reader, not an error.
	Load(ctx context.Context) (io.ReadCloser, error)

	// AppendLine appends one raw rule line
	AppendLine(ctx context.Context, line string) error

	// Rewrite replaces the whole source with the given raw rule lines
	Rewrite(ctx context.Context, lines []string) error
}

// SpamJudge gives a second opinion on a message already flagged by the rule
// set. Optional; a nil judge means enforcement proceeds on match alone.
type SpamJudge interface {
	// IsSpam reports whether the flagged message really is spam
	IsSpam(ctx context.Context, text, matchedRule string) (bool, error)
}
