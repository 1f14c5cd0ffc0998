package storage

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/matt0x6f/ircsession/internal/logger"
)

// Storage persists server configuration in SQLite. Passwords go to the
// PasswordStore when one is configured and are never written to the database.
type Storage struct {
	db        *sqlx.DB
	passwords PasswordStore
}

// NewStorage opens (or creates) the database at dbPath and runs migrations
func NewStorage(dbPath string, passwords PasswordStore) (*Storage, error) {
	// Enable WAL mode for better concurrent writes
	db, err := sqlx.Connect("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection in WAL mode
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Storage{db: db, passwords: passwords}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Save replaces the stored server set with records. Rows whose id is not
// in records are deleted along with their keychain entry.
func (s *Storage) Save(records map[string]ServerRecord) error {
	var existing []string
	if err := s.db.Select(&existing, "SELECT id FROM servers"); err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var removed []string
	for _, id := range existing {
		if _, ok := records[id]; ok {
			continue
		}
		if _, err := tx.Exec("DELETE FROM servers WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete server %s: %w", id, err)
		}
		removed = append(removed, id)
	}

	query := `INSERT INTO servers (id, name, host, port, nickname, tls, last_active_channel, position, created_at, updated_at)
	          VALUES (:id, :name, :host, :port, :nickname, :tls, :last_active_channel, :position, :created_at, :updated_at)
	          ON CONFLICT(id) DO UPDATE SET
	              name = excluded.name, host = excluded.host, port = excluded.port,
	              nickname = excluded.nickname, tls = excluded.tls,
	              last_active_channel = excluded.last_active_channel,
	              position = excluded.position, updated_at = excluded.updated_at`

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := tx.NamedExec(query, rec); err != nil {
			return fmt.Errorf("failed to save server %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit servers: %w", err)
	}

	if s.passwords == nil {
		return nil
	}
	for _, rec := range records {
		if err := s.passwords.StorePassword(rec.ID, rec.Password); err != nil {
			// The row itself is saved; the user re-enters the password after restart
			logger.Log.Warn().Err(err).Str("server", rec.ID).Msg("Failed to store server password")
		}
	}
	for _, id := range removed {
		if err := s.passwords.DeletePassword(id); err != nil {
			logger.Log.Warn().Err(err).Str("server", id).Msg("Failed to delete server password")
		}
	}
	return nil
}

// Load returns every stored server keyed by id
func (s *Storage) Load() (map[string]ServerRecord, error) {
	list, err := s.ListServers()
	if err != nil {
		return nil, err
	}
	records := make(map[string]ServerRecord, len(list))
	for _, rec := range list {
		records[rec.ID] = rec
	}
	return records, nil
}

// ListServers returns stored servers in the order they were added
func (s *Storage) ListServers() ([]ServerRecord, error) {
	var list []ServerRecord
	err := s.db.Select(&list,
		`SELECT id, name, host, port, nickname, tls, last_active_channel, position, created_at, updated_at
		 FROM servers
		 ORDER BY position ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get servers: %w", err)
	}

	if s.passwords != nil {
		for i := range list {
			pw, err := s.passwords.GetPassword(list[i].ID)
			if err != nil {
				logger.Log.Warn().Err(err).Str("server", list[i].ID).Msg("Failed to read server password")
				continue
			}
			list[i].Password = pw
		}
	}
	return list, nil
}
