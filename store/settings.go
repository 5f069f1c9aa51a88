package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/tobe/dbopen"
)

const settingsKey = "settings"

// Settings are the user preferences of the extension.
type Settings struct {
	Theme            string `json:"theme"`            // light | dark
	AutoFormat       bool   `json:"autoFormat"`
	ScreenshotFormat string `json:"screenshotFormat"` // png | jpeg
	TimestampFormat  string `json:"timestampFormat"`  // local | utc
}

// DefaultSettings are written on first use.
func DefaultSettings() Settings {
	return Settings{Theme: "light", AutoFormat: false, ScreenshotFormat: "png", TimestampFormat: "local"}
}

func (s *Settings) fill() {
	d := DefaultSettings()
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	if s.ScreenshotFormat == "" {
		s.ScreenshotFormat = d.ScreenshotFormat
	}
	if s.TimestampFormat == "" {
		s.TimestampFormat = d.TimestampFormat
	}
}

// GetSettings returns the stored settings, installing the defaults when
// none exist yet.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		d := DefaultSettings()
		if err := s.PutSettings(ctx, d); err != nil {
			return Settings{}, err
		}
		return d, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("store: get settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Settings{}, fmt.Errorf("store: decode settings: %w", err)
	}
	out.fill()
	return out, nil
}

// PutSettings replaces the stored settings. Empty fields take their default.
func (s *Store) PutSettings(ctx context.Context, v Settings) error {
	v.fill()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			settingsKey, string(data), time.Now().UnixMilli())
		return err
	})
}
