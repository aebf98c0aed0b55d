package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/zohan724/SweepMonk/internal/biz/domain"
	"github.com/zohan724/SweepMonk/internal/biz/repo"
)

// Open opens (creating if needed) the bot's SQLite database
func Open(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Repositories contains all repositories backed by one database
type Repositories struct {
	Violations    repo.ViolationRepo
	Verifications repo.VerificationRepo
	Settings      repo.SettingsRepo

	db *sql.DB
}

// NewRepositories opens the database and creates all repositories.
// defaults supplies the settings used for chats without stored overrides.
func NewRepositories(dbPath string, defaults domain.ChatSettings) (*Repositories, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	violations, err := NewViolationRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	verifications, err := NewVerificationRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	settings, err := NewSettingsRepo(db, defaults)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Repositories{
		Violations:    violations,
		Verifications: verifications,
		Settings:      settings,
		db:            db,
	}, nil
}

// Close closes the underlying database
func (r *Repositories) Close() error {
	return r.db.Close()
}
