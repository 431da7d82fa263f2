// Package vfs provides the in-process virtual file system that holds a mounted file tree.
package vfs

import (
	"slices"
	"sync"
)

// FileEntry is a single path-addressed file produced by a picker or consumed by an exporter.
type FileEntry struct {
	Path  string
	Bytes []byte
}

// FS is the capability set every virtual file system provides.
type FS interface {
	// List returns every stored path in lexicographic order.
	List() []string
	// Read returns a copy of the bytes stored at path, or false if the path is unknown.
	Read(path string) ([]byte, bool)
	// Write creates path or fully replaces its content.
	Write(path string, data []byte)
}

// MemFS is an ordered in-memory FS. It owns every buffer it stores.
type MemFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	keys  []string
}

var _ FS = (*MemFS)(nil)

// NewMemFS creates an empty MemFS.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

// FromEntries builds a MemFS from picked entries. Later entries with the same path win.
func FromEntries(entries []FileEntry) *MemFS {
	m := NewMemFS()
	for _, e := range entries {
		m.Write(e.Path, e.Bytes)
	}
	return m
}

// List returns every stored path in lexicographic order.
func (m *MemFS) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.keys)
}

// Read returns a copy of the bytes stored at path.
func (m *MemFS) Read(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, false
	}
	return slices.Clone(data), true
}

// Write stores a private copy of data at path.
func (m *MemFS) Write(path string, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.files[path]; !exists {
		idx, _ := slices.BinarySearch(m.keys, path)
		m.keys = slices.Insert(m.keys, idx, path)
	}
	m.files[path] = buf
}

// Len returns the number of stored files.
func (m *MemFS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Entries reads every listed path of fsys in order. Paths that vanish between
// List and Read are exported as empty files.
func Entries(fsys FS) []FileEntry {
	paths := fsys.List()
	out := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		data, _ := fsys.Read(p)
		if data == nil {
			data = []byte{}
		}
		out = append(out, FileEntry{Path: p, Bytes: data})
	}
	return out
}
