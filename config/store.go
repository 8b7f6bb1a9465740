package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
)

const (
	appDirName     = "switchboard"
	configFileName = "proxy-config.json"
	buildDirName   = "build"
)

// DataDirEnv overrides the default data directory when set.
const DataDirEnv = "SWITCHBOARD_DATA_DIR"

// DefaultDir returns the data directory holding the registry document and
// the build scratch directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDirName), nil
}

// Store persists the registry Model as a single JSON document under a data
// directory. The directory is an explicit parameter so tests can point each
// case at its own temp-backed registry.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the registry document's file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, configFileName)
}

// BuildDir returns the scratch directory build contexts are written to.
func (s *Store) BuildDir() string {
	return filepath.Join(s.dir, buildDirName)
}

// Load reads the registry document, returning a default Model when no file
// exists yet. Missing fields are back-filled so callers never see nil slices
// or an empty proxy identity.
func (s *Store) Load() (*Model, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read registry %s: %w", s.Path(), err)
	}

	model := &Model{}
	if err := json.Unmarshal(data, model); err != nil {
		return nil, fmt.Errorf("invalid registry JSON in %s: %w", s.Path(), err)
	}

	if model.Containers == nil {
		model.Containers = []ContainerEntry{}
	}
	if model.Routes == nil {
		model.Routes = []Route{}
	}
	if model.ProxyName == "" {
		model.ProxyName = DefaultProxyName
	}
	if model.Network == "" {
		model.Network = DefaultNetwork
	}
	return model, nil
}

// Save writes the full document atomically, so a concurrent reader never
// observes a partial write.
func (s *Store) Save(model *Model) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	data = append(data, '\n')

	if err := atomicwriter.WriteFile(s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry %s: %w", s.Path(), err)
	}
	return nil
}
