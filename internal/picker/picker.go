// Package picker implements the file-pick services that produce the file set to mount.
package picker

import (
	"context"
	"log"
	"os"
	"path"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/CageChen/cratedeck/internal/apperr"
	"github.com/CageChen/cratedeck/internal/archive"
	mfs "github.com/CageChen/cratedeck/internal/fs"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// Picker returns the files the user chose to mount.
type Picker interface {
	Pick(ctx context.Context) ([]vfs.FileEntry, error)
}

// Probing delegates to Preferred when the named capability is available at call
// time and to Fallback otherwise.
type Probing struct {
	Capability string
	Probe      func() bool
	Preferred  Picker
	Fallback   Picker
}

// Pick probes the capability and delegates.
func (p *Probing) Pick(ctx context.Context) ([]vfs.FileEntry, error) {
	if p.Probe() {
		log.Printf("Picking with %s", p.Capability)
		return p.Preferred.Pick(ctx)
	}
	return p.Fallback.Pick(ctx)
}

// Dir picks every file of a source filesystem that no exclude pattern matches.
type Dir struct {
	fs      mfs.FileSystem
	label   string
	exclude []string
}

// NewDir creates a Dir picker. label names the source in errors.
func NewDir(fsys mfs.FileSystem, label string, exclude []string) *Dir {
	return &Dir{fs: fsys, label: label, exclude: exclude}
}

// Pick walks the source and reads every file.
func (d *Dir) Pick(ctx context.Context) ([]vfs.FileEntry, error) {
	paths, err := mfs.Walk(d.fs, func(rel string, _ bool) bool {
		return Excluded(d.exclude, rel)
	})
	if err != nil {
		return nil, apperr.Pick("walk", d.label, err)
	}

	entries := make([]vfs.FileEntry, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Pick("walk", d.label, err)
		}
		data, err := d.fs.ReadFile(p)
		if err != nil {
			return nil, apperr.Pick("read", p, err)
		}
		entries = append(entries, vfs.FileEntry{Path: p, Bytes: data})
	}
	return entries, nil
}

// Excluded reports whether rel, or its base name, matches any doublestar pattern.
func Excluded(patterns []string, rel string) bool {
	base := path.Base(rel)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Archive picks the files stored in an archive on disk.
type Archive struct {
	fs   afero.Fs
	path string
}

// NewArchive creates an Archive picker reading path from the host filesystem.
func NewArchive(path string) *Archive {
	return NewArchiveFrom(afero.NewOsFs(), path)
}

// NewArchiveFrom creates an Archive picker reading path from fsys.
func NewArchiveFrom(fsys afero.Fs, path string) *Archive {
	return &Archive{fs: fsys, path: path}
}

// Pick reads and extracts the archive.
func (a *Archive) Pick(ctx context.Context) ([]vfs.FileEntry, error) {
	data, err := afero.ReadFile(a.fs, a.path)
	if err != nil {
		return nil, apperr.Pick("read", a.path, err)
	}
	entries, err := archive.Read(ctx, a.path, data)
	if err != nil {
		return nil, apperr.Pick("extract", a.path, err)
	}
	return entries, nil
}

// ForSource returns the picker for a configured source path. At call time it
// prefers reading an archive file, then the given git ref, then the directory on disk.
func ForSource(source, ref string, exclude []string) Picker {
	local := NewDir(mfs.NewLocalFS(source), source, exclude)

	var dir Picker = local
	if ref != "" {
		git := mfs.NewGitFS(source, ref)
		dir = &Probing{
			Capability: "git",
			Probe: func() bool {
				return mfs.GitAvailable() && git.Verify() == nil
			},
			Preferred: NewDir(git, source+"@"+ref, exclude),
			Fallback:  local,
		}
	}

	return &Probing{
		Capability: "archive",
		Probe: func() bool {
			return isArchiveFile(source)
		},
		Preferred: NewArchive(source),
		Fallback:  dir,
	}
}

func isArchiveFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return archive.IsArchiveName(context.Background(), p)
}
