package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"maskframe/internal/mask"
)

// SQLiteStore persists whole records as JSON blobs alongside the summary
// columns used for listing. The persisted JSON is exactly the flat record
// shape owned by the storage contract, so records round-trip losslessly.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(connectionString string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		record BLOB NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		mask_count INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create images table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, record *mask.Record) error {
	payload, err := mask.EncodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to serialize record %s: %w", record.ImageID, err)
	}

	// INSERT OR REPLACE swaps the whole row in one statement, which gives the
	// required all-or-nothing replacement semantics.
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO images (id, record, width, height, created_at, mask_count) VALUES (?, ?, ?, ?, ?, ?)",
		record.ImageID, payload, record.Width, record.Height,
		record.CreatedAt.Format(time.RFC3339Nano), len(record.Masks))
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, imageID string) (*mask.Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT record FROM images WHERE id = ?", imageID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return mask.DecodeRecord(imageID, payload)
}

func (s *SQLiteStore) Delete(ctx context.Context, imageID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", imageID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, width, height, created_at, mask_count FROM images ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var summaries []Summary
	for rows.Next() {
		var (
			summary   Summary
			createdAt string
		)
		if err := rows.Scan(&summary.ImageID, &summary.Width, &summary.Height, &createdAt, &summary.MaskCount); err != nil {
			return nil, err
		}
		summary.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at of %s: %w", summary.ImageID, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
