// Package store keeps the history of merges in SQLite.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

var ErrNotFound = errors.New("store: merge not found")

const schema = `
CREATE TABLE IF NOT EXISTS merges (
    id TEXT PRIMARY KEY,
    primary_path TEXT,
    secondary_path TEXT,
    output_path TEXT,
    format TEXT,
    output BLOB,
    output_hash TEXT UNIQUE,
    trackpoints INTEGER,
    updated INTEGER,
    unknown INTEGER,
    started_at TEXT,
    completed_at TEXT,
    splits BLOB,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`

// Merge is one recorded run of the fusion engine.
type Merge struct {
	ID            string           `json:"id"`
	PrimaryPath   string           `json:"primary_path"`
	SecondaryPath string           `json:"secondary_path"`
	OutputPath    string           `json:"output_path"`
	Format        string           `json:"format"`
	Output        []byte           `json:"-"`
	OutputHash    string           `json:"output_hash"`
	Trackpoints   int              `json:"trackpoints"`
	Updated       int              `json:"updated"`
	Unknown       int              `json:"unknown"`
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   time.Time        `json:"completed_at"`
	Splits        []activity.Split `json:"splits"`
	Created       time.Time        `json:"created_at"`
}

type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// Init creates the merges table if it does not exist.
func (s *Service) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create merges table: %w", err)
	}
	return nil
}

// Add records m and fills in its ID and output hash. Recording the same
// output again replaces the earlier entry.
func (s *Service) Add(ctx context.Context, m *Merge) error {
	sha := sha256.Sum256(m.Output)
	hash := hex.EncodeToString(sha[:])

	existingRow := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM merges WHERE output_hash = ?", hash)
	var count int
	if err := existingRow.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM merges WHERE output_hash = ?", hash); err != nil {
			return err
		}
		s.logger.Info("Replaced existing merge", slog.String("hash", hash))
	}

	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(m.Splits); err != nil {
		return fmt.Errorf("encode splits: %w", err)
	}

	id := uuid.NewString()
	res, err := s.db.ExecContext(ctx, `
    INSERT INTO merges
    (id,
    primary_path,
    secondary_path,
    output_path,
    format,
    output,
    output_hash,
    trackpoints,
    updated,
    unknown,
    started_at,
    completed_at,
    splits)
    VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		m.PrimaryPath,
		m.SecondaryPath,
		m.OutputPath,
		m.Format,
		m.Output,
		hash,
		m.Trackpoints,
		m.Updated,
		m.Unknown,
		activity.FormatTimestamp(m.StartedAt),
		activity.FormatTimestamp(m.CompletedAt),
		buffer.Bytes(),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("expected 1 row to be affected, got %d", affected)
	}

	m.ID = id
	m.OutputHash = hash
	return nil
}

const selectColumns = `SELECT id, primary_path, secondary_path, output_path, format, output, output_hash,
    trackpoints, updated, unknown, started_at, completed_at, splits, created_at FROM merges`

// List returns every recorded merge, oldest first.
func (s *Service) List(ctx context.Context) ([]Merge, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY created_at, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	merges := []Merge{}
	for rows.Next() {
		m, err := scanMerge(rows)
		if err != nil {
			return nil, err
		}
		merges = append(merges, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return merges, nil
}

// Get returns the merge with the given ID or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Merge, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	m, err := scanMerge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Merge{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMerge(row scanner) (Merge, error) {
	var (
		m                  Merge
		started, completed string
		splitsVal          []byte
	)
	if err := row.Scan(&m.ID, &m.PrimaryPath, &m.SecondaryPath, &m.OutputPath, &m.Format, &m.Output, &m.OutputHash,
		&m.Trackpoints, &m.Updated, &m.Unknown, &started, &completed, &splitsVal, &m.Created); err != nil {
		return Merge{}, err
	}

	var err error
	if m.StartedAt, err = activity.ParseTimestamp(started); err != nil {
		return Merge{}, err
	}
	if m.CompletedAt, err = activity.ParseTimestamp(completed); err != nil {
		return Merge{}, err
	}

	if err := gob.NewDecoder(bytes.NewBuffer(splitsVal)).Decode(&m.Splits); err != nil {
		return Merge{}, fmt.Errorf("decode splits: %w", err)
	}
	return m, nil
}
