package delivery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"shipyard/internal/delivery/archive"
	"shipyard/internal/export"
	"shipyard/internal/fileutil"
	"shipyard/internal/naming"
)

// staged is a produced file plus its path relative to the job work dir.
type staged struct {
	file       export.File
	campaignID string
	rel        string
}

// Item is one deliverable: an archive, or a single file.
type Item struct {
	// FileID is set when the item is a single export.File.
	FileID string
	Name   string
	Path   string
	Size   int64
}

// Package is the on-disk result of packaging a job.
type Package struct {
	Packaging export.Packaging
	// Path is the archive, the folder root, or the job work dir for
	// individual packaging.
	Path  string
	Items []Item
}

func collect(job *export.Job, workDir string) []staged {
	var out []staged
	for _, result := range job.Results {
		for _, file := range result.Files {
			rel, err := filepath.Rel(workDir, file.Path)
			if err != nil || strings.HasPrefix(rel, "..") {
				rel = filepath.Join(naming.Sanitize(result.CampaignID), file.Name)
			}
			out = append(out, staged{file: file, campaignID: result.CampaignID, rel: filepath.ToSlash(rel)})
		}
	}
	return out
}

// ArtifactBase names packages after the job, with a short ID suffix so
// re-runs of similarly named jobs do not collide.
func ArtifactBase(job *export.Job) string {
	name := naming.Sanitize(job.Name)
	if name == "" {
		name = "export"
	}
	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return name
	}
	return name + "-" + id
}

func (d *Dispatcher) pack(job *export.Job, files []staged) (Package, error) {
	packaging := job.Format.Packaging
	if packaging == "" {
		packaging = export.PackagingZip
	}
	if packaging == export.PackagingIndividual {
		return individual(d.cfg.JobWorkDir(job.ID), files), nil
	}

	var total int64
	for _, f := range files {
		total += f.file.Size
	}
	if err := d.checkFreeSpace(d.cfg.Paths.OutputDir, total); err != nil {
		return Package{}, err
	}

	base := filepath.Join(d.cfg.Paths.OutputDir, ArtifactBase(job))
	switch packaging {
	case export.PackagingZip, export.PackagingTar:
		entries := make([]archive.Entry, 0, len(files))
		for _, f := range files {
			entries = append(entries, archive.Entry{Name: f.rel, Path: f.file.Path})
		}
		var (
			target string
			size   int64
			err    error
		)
		if packaging == export.PackagingZip {
			target = base + ".zip"
			size, err = archive.WriteZip(target, entries)
		} else {
			target = base + ".tar.gz"
			size, err = archive.WriteTarGz(target, entries)
		}
		if err != nil {
			return Package{}, finalizationError("package", string(packaging), err)
		}
		return Package{
			Packaging: packaging,
			Path:      target,
			Items:     []Item{{Name: filepath.Base(target), Path: target, Size: size}},
		}, nil
	case export.PackagingFolder:
		pkg := Package{Packaging: packaging, Path: base}
		for _, f := range files {
			target := filepath.Join(base, filepath.FromSlash(f.rel))
			if err := fileutil.CopyFileVerified(f.file.Path, target); err != nil {
				return Package{}, finalizationError("package", "folder "+f.rel, err)
			}
			pkg.Items = append(pkg.Items, Item{FileID: f.file.ID, Name: f.rel, Path: target, Size: f.file.Size})
		}
		return pkg, nil
	default:
		return Package{}, finalizationError("package", fmt.Sprintf("unsupported packaging %q", packaging), nil)
	}
}

func individual(workDir string, files []staged) Package {
	pkg := Package{Packaging: export.PackagingIndividual, Path: workDir}
	for _, f := range files {
		pkg.Items = append(pkg.Items, Item{FileID: f.file.ID, Name: f.rel, Path: f.file.Path, Size: f.file.Size})
	}
	return pkg
}

// checkFreeSpace requires room for the package plus the configured reserve.
func (d *Dispatcher) checkFreeSpace(dir string, need int64) error {
	if d.statfs == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return finalizationError("preflight", "create output directory", err)
	}
	_, free, err := d.statfs(dir)
	if err != nil {
		return finalizationError("preflight", "statfs "+dir, err)
	}
	reserve := d.cfg.Export.MinFreeSpaceMB * 1024 * 1024
	required := uint64(need + reserve)
	if free < required {
		return finalizationError("preflight", fmt.Sprintf("insufficient free space in %s: need %s, have %s",
			dir, humanize.IBytes(required), humanize.IBytes(free)), nil)
	}
	return nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
