package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"media-pipeline/internal/filesystem"
)

// ErrSourceNotFound means a media item's file does not exist on disk. It is
// an input error: recorded on the item and not retried automatically.
var ErrSourceNotFound = errors.New("source file not found")

// ResolvePath returns stored unchanged when it is absolute, otherwise joined
// to root.
func ResolvePath(root, stored string) string {
	if filepath.IsAbs(stored) {
		return stored
	}
	return filepath.Join(root, stored)
}

// locate resolves stored against the upload root and checks that it is a
// regular file.
func (p *Pipeline) locate(stored string) (string, error) {
	path := ResolvePath(p.cfg.UploadRoot, stored)
	ok, err := filesystem.IsRegularFile(path, p.retry)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	return path, nil
}
