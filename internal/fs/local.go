package fs

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalFS implements FileSystem on top of an afero filesystem rooted at a directory.
type LocalFS struct {
	fs   afero.Fs
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory on disk.
func NewLocalFS(root string) *LocalFS {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &LocalFS{
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
		root: root,
	}
}

// NewLocalFSFrom wraps an existing afero filesystem, treating its root as the tree root.
func NewLocalFSFrom(fsys afero.Fs) *LocalFS {
	return &LocalFS{fs: fsys, root: "/"}
}

// Root returns the directory this filesystem is rooted at.
func (l *LocalFS) Root() string {
	return l.root
}

func (l *LocalFS) abs(path string) string {
	if path == "" || path == "." {
		return "/"
	}
	return "/" + path
}

// ReadFile reads the contents of the file at the given path relative to the root.
func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(l.fs, l.abs(path))
}

// ReadDir lists the immediate children of the directory at the given path relative to the root.
func (l *LocalFS) ReadDir(path string) ([]DirEntry, error) {
	infos, err := afero.ReadDir(l.fs, l.abs(path))
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, 0, len(infos))
	for _, info := range infos {
		if !info.IsDir() && !info.Mode().IsRegular() {
			continue
		}
		result = append(result, DirEntry{
			Name:  info.Name(),
			IsDir: info.IsDir(),
		})
	}
	return result, nil
}
