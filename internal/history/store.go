// Package history keeps completed readings in a local SQLite database,
// newest first and capped at MaxReadings.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/J-York/TarotWhisper/internal/domain"
)

// MaxReadings is how many readings are kept; older ones are dropped on save.
const MaxReadings = 50

// CurrentSchemaVersion is the latest schema version.
const CurrentSchemaVersion = 1

const dbFile = "history.db"

// Store implements ports.ReadingStore.
type Store struct {
	db *sql.DB
}

// Open initializes baseDir/history.db, creating baseDir if needed.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, dbFile)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0600)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS readings (
		  seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		  id               TEXT NOT NULL UNIQUE,
		  question         TEXT NOT NULL,
		  spread_json      TEXT NOT NULL,
		  drawn_cards_json TEXT NOT NULL,
		  interpretation   TEXT NOT NULL,
		  created_at       TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", 1)); err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
	}

	return nil
}

// Save stores r as the newest reading and trims the history to MaxReadings.
func (s *Store) Save(ctx context.Context, r domain.Reading) error {
	if r.ID == "" {
		return errors.New("reading id is required")
	}
	spreadJSON, err := json.Marshal(r.Spread)
	if err != nil {
		return fmt.Errorf("marshal spread: %w", err)
	}
	cardsJSON, err := json.Marshal(r.DrawnCards)
	if err != nil {
		return fmt.Errorf("marshal drawn cards: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO readings (id, question, spread_json, drawn_cards_json, interpretation, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Question, string(spreadJSON), string(cardsJSON), r.Interpretation,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM readings WHERE seq NOT IN (
		  SELECT seq FROM readings ORDER BY seq DESC LIMIT ?
		)`, MaxReadings)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return tx.Commit()
}

const selectColumns = `SELECT id, question, spread_json, drawn_cards_json, interpretation, created_at FROM readings`

// List returns all stored readings, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (domain.Reading, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reading{}, fmt.Errorf("%w: %s", domain.ErrReadingNotFound, id)
	}
	return r, err
}

// Delete removes the readings with the given ids. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete readings: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM readings`); err != nil {
		return fmt.Errorf("clear readings: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(sc scanner) (domain.Reading, error) {
	var (
		r                     domain.Reading
		spreadJSON, cardsJSON string
		createdAt             string
	)
	if err := sc.Scan(&r.ID, &r.Question, &spreadJSON, &cardsJSON, &r.Interpretation, &createdAt); err != nil {
		return domain.Reading{}, err
	}
	if err := json.Unmarshal([]byte(spreadJSON), &r.Spread); err != nil {
		return domain.Reading{}, fmt.Errorf("decode spread of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(cardsJSON), &r.DrawnCards); err != nil {
		return domain.Reading{}, fmt.Errorf("decode drawn cards of %s: %w", r.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("decode created_at of %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	return r, nil
}
