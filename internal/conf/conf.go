package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
)

// Config represents application configuration
type Config struct {
	// BotName is used in log and notification text
	BotName string

	// Database path (SQLite)
	DBPath string

	// Rule file path
	KeywordsPath string

	// PatternPrefix marks pattern lines in the rule file
	PatternPrefix string

	// Default moderation settings, overridable per chat
	MuteDuration        time.Duration
	VerificationTimeout time.Duration
	NotifyAdmins        bool

	// DedupWindow is how long a repeated message id is ignored
	DedupWindow time.Duration

	// SweepInterval is how often expired verifications are re-checked
	SweepInterval time.Duration

	// AdminIDs are recognized admins for the dry-run transport
	AdminIDs []string

	// Judge configures the optional LLM second opinion
	Judge JudgeConfig

	// MetricsAddr serves Prometheus metrics when non-empty
	MetricsAddr string

	// Debug enables debug logging
	Debug bool
}

// JudgeConfig contains the optional LLM judge configuration
type JudgeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("SWEEPMONK_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".sweepmonk", "bot_data.db")
	}

	keywordsPath := os.Getenv("SWEEPMONK_KEYWORDS_PATH")
	if keywordsPath == "" {
		keywordsPath = "keywords.txt"
	}

	patternPrefix := os.Getenv("SWEEPMONK_PATTERN_PREFIX")
	if patternPrefix == "" {
		patternPrefix = "regex:"
	}

	botName := os.Getenv("SWEEPMONK_BOT_NAME")
	if botName == "" {
		botName = "SweepMonk"
	}

	var adminIDs []string
	if val := os.Getenv("SWEEPMONK_ADMIN_IDS"); val != "" {
		adminIDs = splitCSV(val)
	}

	return &Config{
		BotName:             botName,
		DBPath:              dbPath,
		KeywordsPath:        keywordsPath,
		PatternPrefix:       patternPrefix,
		MuteDuration:        envSeconds("SWEEPMONK_MUTE_SECONDS", 24*time.Hour),
		VerificationTimeout: envSeconds("SWEEPMONK_VERIFY_TIMEOUT_SECONDS", 5*time.Minute),
		NotifyAdmins:        os.Getenv("SWEEPMONK_NOTIFY_ADMINS") != "false",
		DedupWindow:         envSeconds("SWEEPMONK_DEDUP_SECONDS", 5*time.Minute),
		SweepInterval:       envSeconds("SWEEPMONK_SWEEP_SECONDS", time.Minute),
		AdminIDs:            adminIDs,
		Judge: JudgeConfig{
			APIKey:  os.Getenv("SWEEPMONK_JUDGE_API_KEY"),
			BaseURL: os.Getenv("SWEEPMONK_JUDGE_BASE_URL"),
			Model:   os.Getenv("SWEEPMONK_JUDGE_MODEL"),
		},
		MetricsAddr: os.Getenv("SWEEPMONK_METRICS_ADDR"),
		Debug:       os.Getenv("DEBUG") == "true",
	}
}

// DefaultChatSettings converts the configured defaults to domain settings
func (c *Config) DefaultChatSettings() domain.ChatSettings {
	return domain.ChatSettings{
		MuteDuration:        c.MuteDuration,
		VerificationTimeout: c.VerificationTimeout,
		NotifyAdmins:        c.NotifyAdmins,
	}
}

// Validate validates the configuration. Invalid values at startup are the
// only fatal error path; user input never is.
func (c *Config) Validate() error {
	if c.MuteDuration < time.Minute {
		return &ConfigError{Field: "SWEEPMONK_MUTE_SECONDS", Message: "must be at least 60"}
	}
	if c.MuteDuration > 365*24*time.Hour {
		return &ConfigError{Field: "SWEEPMONK_MUTE_SECONDS", Message: "must not exceed 1 year"}
	}
	if c.VerificationTimeout <= 0 {
		return &ConfigError{Field: "SWEEPMONK_VERIFY_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	if c.DedupWindow <= 0 {
		return &ConfigError{Field: "SWEEPMONK_DEDUP_SECONDS", Message: "must be positive"}
	}
	if c.PatternPrefix == "" {
		return &ConfigError{Field: "SWEEPMONK_PATTERN_PREFIX", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envSeconds(name string, def time.Duration) time.Duration {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
