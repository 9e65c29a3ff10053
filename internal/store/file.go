package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/model"
)

// Codec is the text encoding of a history file.
type Codec int

const (
	JSON Codec = iota
	YAML
)

func (c Codec) String() string {
	if c == YAML {
		return "yaml"
	}
	return "json"
}

// CodecFor returns YAML for .yaml/.yml paths and JSON otherwise.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// File stores history as one human-diffable document.
type File struct {
	path  string
	codec Codec
}

// NewFile returns a file backend for path. Nothing is touched until Load or Save.
func NewFile(path string) *File {
	return &File{path: path, codec: CodecFor(path)}
}

// Path returns the history file path.
func (f *File) Path() string { return f.path }

// Load reads the history. A missing file returns E_NOT_FOUND; an unreadable
// document returns E_DECODE_FAILED.
func (f *File) Load(ctx context.Context) ([]model.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithDetails(errors.ENotFound, "history file not found", err, f.details())
		}
		return nil, errors.WrapWithDetails(errors.EDecodeFailed, "failed to read history", err, f.details())
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	runs, err := decode(f.codec, data)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.EDecodeFailed, "failed to decode history", err, f.details())
	}
	return runs, nil
}

// Save encodes the full history, writes it to a temp file next to the target
// and renames it into place.
func (f *File) Save(ctx context.Context, runs []model.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	data, err := encode(f.codec, runs)
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to encode history", err, f.details())
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to create history dir", err, f.details())
	}
	tmpFile, err := os.CreateTemp(dir, "runs-*.tmp")
	if err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to create temp history", err, f.details())
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to write history", err, f.details())
	}
	if err := tmpFile.Close(); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to close history", err, f.details())
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return errors.WrapWithDetails(errors.EPersistFailed, "failed to replace history", err, f.details())
	}
	return nil
}

// Close implements Backend.
func (f *File) Close() error { return nil }

func (f *File) details() map[string]string {
	return map[string]string{"path": f.path, "codec": f.codec.String()}
}

func encode(codec Codec, runs []model.RunRecord) ([]byte, error) {
	if codec == YAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(runs); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decode(codec Codec, data []byte) ([]model.RunRecord, error) {
	var runs []model.RunRecord
	if codec == YAML {
		if err := yaml.Unmarshal(data, &runs); err != nil {
			return nil, err
		}
		return runs, nil
	}
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
