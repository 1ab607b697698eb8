package media

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/pollwatch/internal/filex"
)

// FileSink writes media into a local directory.
type FileSink struct {
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("media dir: %w", err)
	}
	return &FileSink{dir: abs}, nil
}

func (s *FileSink) Put(_ context.Context, key string, data []byte, _ string) error {
	if key != filepath.Base(key) {
		return fmt.Errorf("invalid media key %q", key)
	}
	return filex.WriteFileAtomic(filepath.Join(s.dir, key), data, 0o640)
}
