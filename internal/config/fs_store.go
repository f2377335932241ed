package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cwbudde/oocmeans/internal/xerrors"
)

// FSStore implements Store on the local filesystem: <baseDir>/<name>.json,
// written atomically via temp-file + rename (spec.md §4.A "atomic at the
// file level"), the same pattern as the teacher's FSStore.SaveCheckpoint.
type FSStore struct {
	baseDir string
}

// NewFSStore creates baseDir if needed and returns a Store rooted there.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, "create base directory", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) path(name string) string {
	return filepath.Join(fs.baseDir, name+".json")
}

// Save writes result to <baseDir>/<name>.json.
func (fs *FSStore) Save(name string, result *ClusterResult) error {
	if name == "" {
		return xerrors.New(xerrors.ConfigError, "name cannot be empty")
	}
	if err := result.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return xerrors.Wrap(xerrors.InternalInvariantError, "serialize cluster result", err)
	}

	finalPath := fs.path(name)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return xerrors.Wrap(xerrors.IoError, "write temp result file", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return xerrors.Wrap(xerrors.IoError, "rename result into place", err)
	}

	slog.Debug("cluster result saved", "name", name, "path", finalPath)
	return nil
}

// Load reads a previously saved ClusterResult.
func (fs *FSStore) Load(name string) (*ClusterResult, error) {
	if name == "" {
		return nil, xerrors.New(xerrors.ConfigError, "name cannot be empty")
	}

	path := fs.path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, xerrors.Wrap(xerrors.IoError, "read result file", err)
	}

	var result ClusterResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, xerrors.Wrap(xerrors.FormatError, "deserialize cluster result", err)
	}

	slog.Debug("cluster result loaded", "name", name, "path", path)
	return &result, nil
}
