// Package archive writes export packages as zip or gzip-compressed tar files.
package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Entry is one file placed in an archive. Name is the slash-separated path
// inside the archive.
type Entry struct {
	Name string
	Path string
}

// storedExtensions are already compressed; deflating them again wastes CPU.
var storedExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true,
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
	".mp3": true, ".aac": true, ".zip": true, ".gz": true,
}

// WriteZip creates a zip archive at target and returns its size.
func WriteZip(target string, entries []Entry) (int64, error) {
	return writeAtomic(target, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, entry := range entries {
			if err := addZipEntry(zw, entry); err != nil {
				_ = zw.Close()
				return err
			}
		}
		return zw.Close()
	})
}

// WriteTarGz creates a gzip-compressed tar archive at target and returns its size.
func WriteTarGz(target string, entries []Entry) (int64, error) {
	return writeAtomic(target, func(w io.Writer) error {
		gz, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
		if err != nil {
			return err
		}
		tw := tar.NewWriter(gz)
		for _, entry := range entries {
			if err := addTarEntry(tw, entry); err != nil {
				_ = tw.Close()
				_ = gz.Close()
				return err
			}
		}
		if err := tw.Close(); err != nil {
			_ = gz.Close()
			return err
		}
		return gz.Close()
	})
}

func addZipEntry(zw *zip.Writer, entry Entry) error {
	info, err := os.Stat(entry.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", entry.Name, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = cleanName(entry.Name)
	header.Method = zip.Deflate
	if storedExtensions[strings.ToLower(path.Ext(header.Name))] {
		header.Method = zip.Store
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	return copyFrom(w, entry)
}

func addTarEntry(tw *tar.Writer, entry Entry) error {
	info, err := os.Stat(entry.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", entry.Name, err)
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = cleanName(entry.Name)
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	return copyFrom(tw, entry)
}

func copyFrom(w io.Writer, entry Entry) error {
	in, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("copy %s: %w", entry.Name, err)
	}
	return nil
}

func cleanName(name string) string {
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(name)), "/")
}

// writeAtomic writes to a sibling temp file and renames it into place so a
// failed packaging step never leaves a truncated archive behind.
func writeAtomic(target string, fill func(io.Writer) error) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create archive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".archive-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
