// Package exporter delivers a snapshot of the mounted VFS to the user as an archive.
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/CageChen/cratedeck/internal/apperr"
	"github.com/CageChen/cratedeck/internal/archive"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// File writes each export to a new timestamped archive in a directory.
type File struct {
	fs     afero.Fs
	dir    string
	name   string
	format archive.Format
	now    func() time.Time

	mu   sync.Mutex
	last string
}

// NewFile creates a File exporter writing <dir>/<name>-<timestamp><ext> on fsys.
func NewFile(fsys afero.Fs, dir, name string, format archive.Format) *File {
	return &File{fs: fsys, dir: dir, name: name, format: format, now: time.Now}
}

// Export writes entries as a new archive.
func (f *File) Export(entries []vfs.FileEntry) error {
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return apperr.Export("mkdir", f.dir, err)
	}

	target, err := f.target()
	if err != nil {
		return apperr.Export("create", f.dir, err)
	}
	out, err := f.fs.Create(target)
	if err != nil {
		return apperr.Export("create", target, err)
	}

	if err := archive.Write(context.Background(), out, f.format, entries); err != nil {
		_ = out.Close()
		_ = f.fs.Remove(target)
		return apperr.Export("write", target, err)
	}
	if err := out.Close(); err != nil {
		_ = f.fs.Remove(target)
		return apperr.Export("close", target, err)
	}

	f.mu.Lock()
	f.last = target
	f.mu.Unlock()
	log.Printf("Exported %d files to %s", len(entries), target)
	return nil
}

// target returns a file name not yet used in the directory. Exports within the
// same second get a numeric suffix.
func (f *File) target() (string, error) {
	base := fmt.Sprintf("%s-%s", f.name, f.now().Format("20060102-150405"))
	for n := 1; ; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		p := filepath.Join(f.dir, name+f.format.Extension())
		exists, err := afero.Exists(f.fs, p)
		if err != nil {
			return "", err
		}
		if !exists {
			return p, nil
		}
	}
}

// LastPath returns the path of the most recent successful export.
func (f *File) LastPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Blob is an archive held in memory until the browser downloads it.
type Blob struct {
	Name      string
	MediaType string
	Data      []byte
}

// Download keeps archives in memory and asks the browser to fetch them.
type Download struct {
	name   string
	format archive.Format
	notify func(url string) error
	keep   int
	seq    atomic.Uint64

	mu    sync.Mutex
	blobs map[string]*Blob
	order []string
}

// DownloadPath is the URL prefix blobs are served under.
const DownloadPath = "/api/download/"

// NewDownload creates a Download exporter. notify must make the browser open the given URL.
func NewDownload(name string, format archive.Format, notify func(url string) error) *Download {
	return &Download{
		name:   name,
		format: format,
		notify: notify,
		keep:   4,
		blobs:  make(map[string]*Blob),
	}
}

// Export encodes entries and hands the download URL to the browser.
func (d *Download) Export(entries []vfs.FileEntry) error {
	var buf bytes.Buffer
	if err := archive.Write(context.Background(), &buf, d.format, entries); err != nil {
		return apperr.Export("write", d.name, err)
	}

	id := fmt.Sprintf("%d", d.seq.Add(1))
	d.put(id, &Blob{
		Name:      d.name + d.format.Extension(),
		MediaType: d.format.MediaType(),
		Data:      buf.Bytes(),
	})

	if err := d.notify(DownloadPath + id); err != nil {
		d.remove(id)
		return apperr.Export("deliver", d.name, err)
	}
	return nil
}

// Get returns the blob stored under id.
func (d *Download) Get(id string) (*Blob, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.blobs[id]
	return b, ok
}

func (d *Download) put(id string, b *Blob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blobs[id] = b
	d.order = append(d.order, id)
	for len(d.order) > d.keep {
		delete(d.blobs, d.order[0])
		d.order = d.order[1:]
	}
}

func (d *Download) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blobs, id)
	for i, o := range d.order {
		if o == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}
