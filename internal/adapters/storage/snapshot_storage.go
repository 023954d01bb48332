package storage

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
	"github.com/emiliopalmerini/shinyhunt/internal/util"
)

const snapshotFile = "hunts.json.gz"

// SnapshotStorage keeps the hunt snapshot as gzipped JSON in one file.
// Writes go to a temporary file that is renamed over the old one.
type SnapshotStorage struct {
	mu      sync.Mutex
	baseDir string
}

// NewSnapshotStorage stores snapshots under the XDG data directory.
func NewSnapshotStorage() (*SnapshotStorage, error) {
	baseDir, err := util.GetXDGDataDir()
	if err != nil {
		return nil, err
	}
	return NewSnapshotStorageAt(baseDir)
}

// NewSnapshotStorageAt stores snapshots under dir.
func NewSnapshotStorageAt(dir string) (*SnapshotStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotStorage{baseDir: dir}, nil
}

// Path returns the snapshot file location.
func (s *SnapshotStorage) Path() string {
	return filepath.Join(s.baseDir, snapshotFile)
}

// Load returns the stored snapshot, or nil when no file exists.
func (s *SnapshotStorage) Load(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *SnapshotStorage) read() (*domain.Snapshot, error) {
	file, err := os.Open(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer func() { _ = file.Close() }()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gzip reader: %w", domain.ErrCorruptSnapshot, err)
	}
	defer func() { _ = gr.Close() }()

	var snap domain.Snapshot
	if err := json.NewDecoder(gr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: failed to decode snapshot: %w", domain.ErrCorruptSnapshot, err)
	}
	snap.Normalize()
	return &snap, nil
}

// Save replaces the stored snapshot. A snapshot whose revision is not
// newer than the stored one is ignored.
func (s *SnapshotStorage) Save(ctx context.Context, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	// An unreadable file is overwritten rather than blocking every save.
	if current, err := s.read(); err == nil && current != nil && snap.Revision <= current.Revision {
		return nil
	}

	tmp, err := os.CreateTemp(s.baseDir, snapshotFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writeGzipJSON(tmp, snap); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

func writeGzipJSON(w io.Writer, v any) error {
	gw := gzip.NewWriter(w)
	if err := json.NewEncoder(gw).Encode(v); err != nil {
		_ = gw.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

// Delete removes the stored snapshot.
func (s *SnapshotStorage) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
