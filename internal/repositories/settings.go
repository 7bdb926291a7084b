package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/shared"
)

// SettingsRepository persists per-device settings such as the user identity.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new [SettingsRepository] with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for key and whether it was set.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM user_settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// UserID returns the persisted user identity, creating a v4 UUID on first use.
//
// created reports whether a new identity was minted so the caller can register it.
func (r *SettingsRepository) UserID(ctx context.Context) (id string, created bool, err error) {
	id, ok, err := r.Get(ctx, settingUserID)
	if err != nil {
		return "", false, err
	}
	if ok && id != "" {
		return id, false, nil
	}

	id = shared.GenerateID()
	if err := r.Set(ctx, settingUserID, id); err != nil {
		return "", false, err
	}
	return id, true, nil
}

// SetUserID pins the identity, e.g. when restoring a device.
func (r *SettingsRepository) SetUserID(ctx context.Context, id string) error {
	if !shared.IsUUID(id) {
		return fmt.Errorf("%w: user id %q is not a UUID", shared.ErrInvalidArgument, id)
	}
	return r.Set(ctx, settingUserID, id)
}

// AlbumMode returns the persisted album mode, defaulting to [models.AlbumModeDefault].
func (r *SettingsRepository) AlbumMode(ctx context.Context) (models.AlbumMode, error) {
	v, _, err := r.Get(ctx, settingAlbumMode)
	if err != nil {
		return "", err
	}
	return models.ParseAlbumMode(v)
}

// SetAlbumMode persists the album mode toggle.
func (r *SettingsRepository) SetAlbumMode(ctx context.Context, mode models.AlbumMode) error {
	m, err := models.ParseAlbumMode(string(mode))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return r.Set(ctx, settingAlbumMode, string(m))
}
