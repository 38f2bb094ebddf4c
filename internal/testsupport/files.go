package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of filler, creating parent
// directories. Sizes below one byte are rounded up to one so the file
// always has content to checksum.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if _, err := io.CopyN(f, filler{}, max(size, 1)); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// filler is an endless reader of 'B' bytes.
type filler struct{}

func (filler) Read(p []byte) (int, error) {
	copy(p, bytes.Repeat([]byte{'B'}, len(p)))
	return len(p), nil
}
