package store

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/splits/internal/model"
)

// Backend persists the whole run history. Save replaces everything previously
// stored; a failed Save leaves the previous contents intact.
type Backend interface {
	Load(ctx context.Context) ([]model.RunRecord, error)
	Save(ctx context.Context, runs []model.RunRecord) error
	Close() error
}

// OpenBackend picks a backend by file extension: ".db", ".sqlite" and
// ".sqlite3" open SQLite, anything else is a JSON or YAML file.
func OpenBackend(path string) (Backend, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return Open(path)
	default:
		return NewFile(path), nil
	}
}
