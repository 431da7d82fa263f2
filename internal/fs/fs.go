// Package fs provides the source filesystems a crate can be picked from: local disk or a git ref.
package fs

import (
	"path"
	"slices"
)

// DirEntry represents a single directory entry.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FileSystem abstracts read access to a source tree so pickers can work with either
// the local filesystem or a git object database.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]DirEntry, error)
}

// Lister is implemented by filesystems that can enumerate every file in one call.
type Lister interface {
	ListFiles() ([]string, error)
}

// SkipFunc reports whether a slash-separated relative path should be left out of a walk.
type SkipFunc func(rel string, isDir bool) bool

// Walk returns the relative, slash-separated paths of every regular file under root,
// sorted lexicographically. Directories for which skip returns true are not descended.
func Walk(fsys FileSystem, skip SkipFunc) ([]string, error) {
	if skip == nil {
		skip = func(string, bool) bool { return false }
	}

	if l, ok := fsys.(Lister); ok {
		all, err := l.ListFiles()
		if err != nil {
			return nil, err
		}
		files := make([]string, 0, len(all))
		for _, p := range all {
			if skip(p, false) || skipsAncestor(p, skip) {
				continue
			}
			files = append(files, p)
		}
		slices.Sort(files)
		return files, nil
	}

	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			rel := e.Name
			if dir != "" {
				rel = path.Join(dir, e.Name)
			}
			if skip(rel, e.IsDir) {
				continue
			}
			if e.IsDir {
				if err := walk(rel); err != nil {
					return err
				}
				continue
			}
			files = append(files, rel)
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// skipsAncestor reports whether any parent directory of p is skipped.
func skipsAncestor(p string, skip SkipFunc) bool {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if skip(dir, true) {
			return true
		}
	}
	return false
}
