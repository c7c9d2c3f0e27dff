package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileRepository persists snapshots as JSON files, one per route, using
// the versioned snapshot codec. Suited to single-node deployments where
// no database is available.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a file-backed progress repository rooted at
// dir, creating the directory if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(routeID string) string {
	return filepath.Join(r.dir, routeID+".json")
}

// Save persists a snapshot. The write goes through a temp file and
// rename so a crash mid-write never leaves a truncated snapshot.
func (r *FileRepository) Save(_ context.Context, snap *Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tmp := r.path(snap.RouteID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, r.path(snap.RouteID)); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load retrieves the snapshot for a route.
func (r *FileRepository) Load(_ context.Context, routeID string) (*Snapshot, error) {
	data, err := os.ReadFile(r.path(routeID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// Delete removes the snapshot for a route.
func (r *FileRepository) Delete(_ context.Context, routeID string) error {
	err := os.Remove(r.path(routeID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Ensure FileRepository implements Repository interface.
var _ Repository = (*FileRepository)(nil)
