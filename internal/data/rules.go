package data

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ruleFileRepo persists the rule list as a line-oriented text file
// (one rule per line, # comments, pattern lines marked by prefix)
type ruleFileRepo struct {
	path          string
	patternPrefix string
}

// NewRuleFileRepo creates a rule source backed by the given file path
func NewRuleFileRepo(path, patternPrefix string) *ruleFileRepo {
	return &ruleFileRepo{path: path, patternPrefix: patternPrefix}
}

// Load opens the rule file for reading. A missing file yields an empty
// reader so first startup works without one.
func (r *ruleFileRepo) Load(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return io.NopCloser(strings.NewReader("")), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", err)
	}
	return f, nil
}

// AppendLine appends one raw rule line
func (r *ruleFileRepo) AppendLine(ctx context.Context, line string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create rule file directory: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open rule file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append rule: %w", err)
	}
	return nil
}

// Rewrite replaces the whole file with the given raw rule lines, pattern
// lines first, behind a short comment header.
func (r *ruleFileRepo) Rewrite(ctx context.Context, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create rule file directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Moderation rule list\n")
	sb.WriteString("# One rule per line; lines starting with # are comments.\n")
	sb.WriteString("# Pattern rules start with " + r.patternPrefix + "\n\n")

	for _, line := range lines {
		if strings.HasPrefix(line, r.patternPrefix) {
			sb.WriteString(line + "\n")
		}
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, r.patternPrefix) {
			sb.WriteString(line + "\n")
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace rule file: %w", err)
	}
	return nil
}
