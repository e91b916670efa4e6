package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goalnest/goalnest/internal/db"
	"github.com/jmoiron/sqlx"
)

const TableSettings = "settings"

const (
	SettingInstallID   = "install_id"
	SettingDisplayName = "display_name"
	SettingInboxCursor = "inbox_cursor"
	SettingRelayToken  = "relay_token"
)

var (
	ErrSettingNotFound = errors.New("setting not found")
)

// SettingsRepository is the key/value store for sync metadata.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type settingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	q, err := db.Conn(ctx, r.db, TableSettings)
	if err != nil {
		return "", err
	}

	var value string
	err = sqlx.GetContext(ctx, q, &value, `SELECT value FROM settings WHERE key = $1`, key)
	if err == sql.ErrNoRows {
		return "", ErrSettingNotFound
	}
	return value, err
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	q, err := db.Conn(ctx, r.db, TableSettings)
	if err != nil {
		return err
	}

	query := `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
	          ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err = q.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}
