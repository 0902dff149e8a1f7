package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/observation-tools/observation-tools/model"
)

// Filesystem is the default blob backend: one file per object under
// {root}/{observation_id}/{payload_id}.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root %s: %w", root, err)
	}
	return &Filesystem{root: root}, nil
}

// Put writes the object through a temp file and renames it into place, so
// readers never observe a partial object.
func (f *Filesystem) Put(ctx context.Context, observationID model.ObservationID, payloadID model.PayloadID, r io.Reader, size int64) error {
	dir := filepath.Join(f.root, observationID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("blob: create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("blob: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("blob: write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("blob: close object: %w", err)
	}

	final := filepath.Join(dir, payloadID.String())
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("blob: finalize object: %w", err)
	}
	return nil
}

// Get opens the object file.
func (f *Filesystem) Get(ctx context.Context, observationID model.ObservationID, payloadID model.PayloadID) (io.ReadCloser, error) {
	path := filepath.Join(f.root, observationID.String(), payloadID.String())
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: open object: %w", err)
	}
	return file, nil
}
