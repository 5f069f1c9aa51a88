package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/hazyhaar/tobe/dbopen"
)

// PendingMaxAge is how long a context-menu selection stays loadable.
const PendingMaxAge = 30 * time.Second

// PendingJSON is text handed from the "Format JSON" context menu to the
// formatter.
type PendingJSON struct {
	Text        string `json:"text"`
	IsValidJSON bool   `json:"isValidJson"`
	CreatedAt   int64  `json:"timestamp"`
}

// PutPendingJSON stores text as the pending selection, replacing any
// previous one.
func (s *Store) PutPendingJSON(ctx context.Context, text string, now time.Time) (*PendingJSON, error) {
	p := &PendingJSON{Text: text, IsValidJSON: json.Valid([]byte(text)), CreatedAt: now.UnixMilli()}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pending_json (slot, text, is_valid_json, created_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET text = excluded.text,
			is_valid_json = excluded.is_valid_json, created_at = excluded.created_at`,
		p.Text, boolInt(p.IsValidJSON), p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// TakePendingJSON returns the pending selection if it is younger than
// PendingMaxAge at now, and removes it. A stale selection is left in place
// and nil is returned.
func (s *Store) TakePendingJSON(ctx context.Context, now time.Time) (*PendingJSON, error) {
	var out *PendingJSON
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		p := &PendingJSON{}
		var valid int
		err := tx.QueryRowContext(ctx, `SELECT text, is_valid_json, created_at FROM pending_json WHERE slot = 1`).
			Scan(&p.Text, &valid, &p.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if now.UnixMilli()-p.CreatedAt >= PendingMaxAge.Milliseconds() {
			return nil
		}
		p.IsValidJSON = valid != 0
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_json WHERE slot = 1`); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// SaveTreeState stores the serialized expand/collapse state of a document.
func (s *Store) SaveTreeState(ctx context.Context, docKey string, state []byte) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO tree_state (doc_key, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		docKey, string(state), time.Now().UnixMilli())
	return err
}

// LoadTreeState returns the stored state of docKey, or nil when none.
func (s *Store) LoadTreeState(ctx context.Context, docKey string) ([]byte, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, `SELECT state FROM tree_state WHERE doc_key = ?`, docKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
