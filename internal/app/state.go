package app

import (
	"slices"
	"sync"

	"github.com/CageChen/cratedeck/internal/preview"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// InitialStatus is shown until the first operation reports.
const InitialStatus = "Press U to upload a crate"

// cell guards a single state field.
type cell[T any] struct {
	mu sync.RWMutex
	v  T
}

func (c *cell[T]) load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

func (c *cell[T]) store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = v
}

func (c *cell[T]) update(fn func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = fn(c.v)
}

// State is shared between the dispatch loop, which is its only writer, and the
// render surfaces. Each field has its own guard.
type State struct {
	counter       cell[uint8]
	loadedText    cell[*string]
	vfs           cell[*vfs.MemFS]
	previews      cell[[]preview.FilePreview]
	status        cell[string]
	sourceChanged cell[bool]
}

// Snapshot is a read-only copy of State for rendering.
type Snapshot struct {
	Counter       uint8                 `json:"counter"`
	LoadedText    *string               `json:"loadedText"`
	Mounted       bool                  `json:"mounted"`
	FileCount     int                   `json:"fileCount"`
	Previews      []preview.FilePreview `json:"previews"`
	Status        string                `json:"status"`
	SourceChanged bool                  `json:"sourceChanged"`
}

// NewState creates the state of a fresh session.
func NewState() *State {
	s := &State{}
	s.status.v = InitialStatus
	s.previews.v = []preview.FilePreview{}
	return s
}

// Snapshot copies every field. The mounted VFS and its previews are read under
// both guards, in the same order mount takes them, so they always match.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Counter:       s.counter.load(),
		Status:        s.status.load(),
		SourceChanged: s.sourceChanged.load(),
	}
	if text := s.loadedText.load(); text != nil {
		t := *text
		snap.LoadedText = &t
	}

	s.vfs.mu.RLock()
	defer s.vfs.mu.RUnlock()
	s.previews.mu.RLock()
	defer s.previews.mu.RUnlock()

	if s.vfs.v != nil {
		snap.Mounted = true
		snap.FileCount = s.vfs.v.Len()
	}
	snap.Previews = slices.Clone(s.previews.v)
	return snap
}

// ViewVFS calls fn with the mounted VFS while holding its read guard.
// It returns false when nothing is mounted.
func (s *State) ViewVFS(fn func(fsys vfs.FS)) bool {
	s.vfs.mu.RLock()
	defer s.vfs.mu.RUnlock()
	if s.vfs.v == nil {
		return false
	}
	fn(s.vfs.v)
	return true
}

// mount replaces the VFS and rebuilds previews before either guard is released.
func (s *State) mount(m *vfs.MemFS) int {
	s.vfs.mu.Lock()
	defer s.vfs.mu.Unlock()
	s.previews.mu.Lock()
	defer s.previews.mu.Unlock()

	s.vfs.v = m
	s.previews.v = preview.Project(m)
	return len(s.previews.v)
}

func (s *State) exportEntries() ([]vfs.FileEntry, bool) {
	s.vfs.mu.RLock()
	defer s.vfs.mu.RUnlock()
	if s.vfs.v == nil {
		return nil, false
	}
	return vfs.Entries(s.vfs.v), true
}
