package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"shipyard/internal/fileutil"
	"shipyard/internal/services"
)

// Filesystem mirrors uploads into a local directory.
type Filesystem struct {
	root   string
	prefix string
}

func NewFilesystem(root, prefix string) *Filesystem {
	return &Filesystem{root: root, prefix: prefix}
}

func (f *Filesystem) Upload(ctx context.Context, key, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.root == "" {
		return "", services.Wrap(services.ErrConfiguration, "storage", "filesystem", "storage.local_dir is not set", nil)
	}
	full := ObjectKey(f.prefix, key)
	target := filepath.Join(f.root, filepath.FromSlash(full))
	if err := fileutil.CopyFileVerified(localPath, target); err != nil {
		return "", uploadError("filesystem", full, fmt.Errorf("copy: %w", err))
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func (f *Filesystem) Close() error { return nil }
