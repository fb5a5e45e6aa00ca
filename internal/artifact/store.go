// Package artifact hands files produced by one pipeline job to later jobs.
// Ordering is guaranteed by the plan DAG, not by the store.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PlanFile is the well-known name of the infrastructure plan artifact,
// produced by validate-plan and consumed by deploy.
const PlanFile = "tfplan.bin"

// Store is a directory-backed artifact store scoped to a single run
type Store struct {
	dir string
}

// NewStore creates the run's artifact directory if needed
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute path an artifact is stored at
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether an artifact has been produced
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// Save writes an artifact from a reader
func (s *Store) Save(name string, r io.Reader) error {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return fmt.Errorf("failed to create artifact %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	return nil
}

// Open opens an artifact for reading; the caller closes it
func (s *Store) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", name, err)
	}
	return f, nil
}
