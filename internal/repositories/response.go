package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/multiverse/internal/models"
)

// ResponseRepository persists the current job in SQLite.
//
// The job, its inputs and the source image live in store_entries; every saved job is
// also appended to job_history, trimmed to historyLimit rows.
type ResponseRepository struct {
	db           *sql.DB
	historyLimit int
	now          func() time.Time
}

// NewResponseRepository creates a new [ResponseRepository]. A historyLimit <= 0 uses [DefaultHistory].
func NewResponseRepository(db *sql.DB, historyLimit int) *ResponseRepository {
	if historyLimit <= 0 {
		historyLimit = DefaultHistory
	}
	return &ResponseRepository{db: db, historyLimit: historyLimit, now: time.Now}
}

// Save atomically replaces the current job and inputs and records the job in history.
func (r *ResponseRepository) Save(ctx context.Context, job *models.GenerationJob, inputs *models.GenerationInputs) error {
	jobData, err := encodeJob(job)
	if err != nil {
		return err
	}
	inputsData, err := encodeInputs(inputs)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC()
	if err := putEntry(ctx, tx, KeyResponse, jobData, now); err != nil {
		return err
	}
	if inputsData != nil {
		if err := putEntry(ctx, tx, KeyInputs, inputsData, now); err != nil {
			return err
		}
	} else if _, err := tx.ExecContext(ctx, "DELETE FROM store_entries WHERE key = ?", KeyInputs); err != nil {
		return fmt.Errorf("failed to clear inputs: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO job_history (request_id, source_image_id, payload, inputs, created_at) VALUES (?, ?, ?, ?, ?)",
		job.RequestID, job.SourceImageID, string(jobData), nullString(inputsData), now,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM job_history WHERE id NOT IN (SELECT id FROM job_history ORDER BY id DESC LIMIT ?)",
		r.historyLimit,
	)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}
	return nil
}

// Current returns the current job, or nil when none is stored.
func (r *ResponseRepository) Current(ctx context.Context) (*models.GenerationJob, error) {
	data, err := r.get(ctx, KeyResponse)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeJob(data)
}

// CurrentInputs returns the inputs of the current job, or nil when none are stored.
func (r *ResponseRepository) CurrentInputs(ctx context.Context) (*models.GenerationInputs, error) {
	data, err := r.get(ctx, KeyInputs)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeInputs(data)
}

// SaveSourceImage stores the (preprocessed) source image bytes.
func (r *ResponseRepository) SaveSourceImage(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("source image is empty")
	}
	return putEntry(ctx, r.db, KeySourceImage, data, r.now().UTC())
}

// SourceImage returns the stored source image, or nil when none is stored.
func (r *ResponseRepository) SourceImage(ctx context.Context) ([]byte, error) {
	return r.get(ctx, KeySourceImage)
}

// Clear removes the current job, its inputs and the source image. History is kept.
func (r *ResponseRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM store_entries WHERE key IN (?, ?, ?)",
		KeyResponse, KeyInputs, KeySourceImage,
	)
	if err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

// History returns up to limit previously saved jobs, newest first.
func (r *ResponseRepository) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = r.historyLimit
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT payload, inputs, created_at FROM job_history ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var (
			payload   string
			inputs    sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&payload, &inputs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}

		var inputsData []byte
		if inputs.Valid {
			inputsData = []byte(inputs.String)
		}
		entry, err := historyEntry([]byte(payload), inputsData, createdAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *ResponseRepository) get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT value FROM store_entries WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putEntry(ctx context.Context, db execer, key string, value []byte, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO store_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, at)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
