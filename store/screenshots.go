package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hazyhaar/tobe/idgen"
)

// Screenshot kinds.
const (
	KindVisible   = "visible"
	KindSelection = "selection"
	KindFullPage  = "fullpage"
)

// Screenshot is one stored capture.
type Screenshot struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	PageURL   string `json:"page_url,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Segments  int    `json:"segments"`
	PNG       []byte `json:"-"`
	CreatedAt int64  `json:"created_at"`
}

// InsertScreenshot stores sh, assigning its ID and timestamp when empty.
func (s *Store) InsertScreenshot(ctx context.Context, sh *Screenshot) error {
	if sh.ID == "" {
		sh.ID = idgen.Screenshot()
	}
	if sh.CreatedAt == 0 {
		sh.CreatedAt = time.Now().UnixMilli()
	}
	if sh.Segments == 0 {
		sh.Segments = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO screenshots (id, kind, page_url, width, height, segments, png, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		sh.ID, sh.Kind, sh.PageURL, sh.Width, sh.Height, sh.Segments, sh.PNG, sh.CreatedAt)
	return err
}

// LastScreenshot returns the newest screenshot of kind, or of any kind when
// kind is empty. Returns nil, nil when there is none.
func (s *Store) LastScreenshot(ctx context.Context, kind string) (*Screenshot, error) {
	q := `SELECT id, kind, page_url, width, height, segments, png, created_at FROM screenshots`
	var args []any
	if kind != "" {
		q += ` WHERE kind = ?`
		args = append(args, kind)
	}
	q += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`

	sh := &Screenshot{}
	err := s.DB.QueryRowContext(ctx, q, args...).Scan(
		&sh.ID, &sh.Kind, &sh.PageURL, &sh.Width, &sh.Height, &sh.Segments, &sh.PNG, &sh.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// ListScreenshots returns the newest screenshots first, without image data.
func (s *Store) ListScreenshots(ctx context.Context, limit int) ([]*Screenshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, kind, page_url, width, height, segments, created_at
		FROM screenshots ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Screenshot
	for rows.Next() {
		sh := &Screenshot{}
		if err := rows.Scan(&sh.ID, &sh.Kind, &sh.PageURL, &sh.Width, &sh.Height, &sh.Segments, &sh.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// PruneScreenshots keeps the newest keep screenshots and deletes the rest.
func (s *Store) PruneScreenshots(ctx context.Context, keep int) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM screenshots WHERE id NOT IN (
			SELECT id FROM screenshots ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
