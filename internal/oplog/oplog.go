// Package oplog reads the logs local agents capture while running an operation.
package oplog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultMaxSize is the largest log tail read by a Store with no explicit limit.
const DefaultMaxSize = 1 << 20

// Domain errors for the oplog package.
var (
	ErrRelativePath = errors.New("oplog: log path must be absolute")
	ErrNotRegular   = errors.New("oplog: log path is not a regular file")
)

// Store reads operation logs from the local filesystem.
type Store struct {
	maxSize int64
}

// NewStore creates a store that reads at most maxSize bytes per log.
// Larger logs are truncated from the front, keeping the most recent output.
func NewStore(maxSize int64) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Store{maxSize: maxSize}
}

// Read returns the content of the log at path.
func (s *Store) Read(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%w: %s", ErrRelativePath, path)
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening operation log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("reading operation log: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	if info.Size() > s.maxSize {
		if _, err := f.Seek(info.Size()-s.maxSize, io.SeekStart); err != nil {
			return nil, fmt.Errorf("reading operation log: %w", err)
		}
	}

	data, err := io.ReadAll(io.LimitReader(f, s.maxSize))
	if err != nil {
		return nil, fmt.Errorf("reading operation log: %w", err)
	}
	return data, nil
}
