// Package store provides the SQLite persistence layer for tobe: settings,
// screenshot history, the context-menu JSON hand-off and JSON viewer state.
package store

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tobe/dbopen"
)

// Store is the tobe database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the tobe SQLite database at path and applies the
// schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
