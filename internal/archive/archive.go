// Package archive encodes VFS snapshots as archives and decodes archives back into file entries.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/mholt/archives"

	"github.com/CageChen/cratedeck/internal/vfs"
)

// Format names an output archive format.
type Format string

// Supported output formats.
const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// modTime is stamped on every archived file so identical trees produce identical archives.
var modTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case FormatZip:
		return FormatZip, nil
	case FormatTarGz, "tgz":
		return FormatTarGz, nil
	default:
		return "", fmt.Errorf("unsupported archive format %q", s)
	}
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// MediaType returns the MIME type used when serving the archive.
func (f Format) MediaType() string {
	if f == FormatTarGz {
		return "application/gzip"
	}
	return "application/zip"
}

func (f Format) archiver() (archives.Archiver, error) {
	switch f {
	case FormatZip:
		return archives.Zip{}, nil
	case FormatTarGz:
		return archives.CompressedArchive{
			Compression: archives.Gz{},
			Archival:    archives.Tar{},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported archive format %q", f)
	}
}

// Write encodes entries into w in the given format, preserving entry order.
func Write(ctx context.Context, w io.Writer, format Format, entries []vfs.FileEntry) error {
	arc, err := format.archiver()
	if err != nil {
		return err
	}

	files := make([]archives.FileInfo, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimPrefix(path.Clean("/"+e.Path), "/")
		if name == "" {
			return fmt.Errorf("invalid entry path %q", e.Path)
		}
		info := entryInfo{name: path.Base(name), size: int64(len(e.Bytes))}
		data := e.Bytes
		files = append(files, archives.FileInfo{
			FileInfo:      info,
			NameInArchive: name,
			Open: func() (fs.File, error) {
				return &entryFile{Reader: bytes.NewReader(data), info: info}, nil
			},
		})
	}

	if err := arc.Archive(ctx, w, files); err != nil {
		return fmt.Errorf("writing %s archive: %w", format, err)
	}
	return nil
}

// Read identifies the archive format from name and content and returns every regular file in it.
func Read(ctx context.Context, name string, data []byte) ([]vfs.FileEntry, error) {
	format, _, err := archives.Identify(ctx, name, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("identifying %s: %w", name, err)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("%s: format %s cannot be extracted", name, format.Extension())
	}

	var entries []vfs.FileEntry
	err = ex.Extract(ctx, bytes.NewReader(data), func(ctx context.Context, f archives.FileInfo) error {
		if f.IsDir() || !f.Mode().IsRegular() {
			return nil
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.NameInArchive, err)
		}
		entries = append(entries, vfs.FileEntry{
			Path:  strings.TrimPrefix(path.Clean("/"+f.NameInArchive), "/"),
			Bytes: content,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", name, err)
	}
	return entries, nil
}

// IsArchiveName reports whether name has an extension mholt/archives can identify.
func IsArchiveName(ctx context.Context, name string) bool {
	format, _, err := archives.Identify(ctx, name, nil)
	if err != nil {
		return false
	}
	_, ok := format.(archives.Extractor)
	return ok
}

type entryInfo struct {
	name string
	size int64
}

func (i entryInfo) Name() string       { return i.name }
func (i entryInfo) Size() int64        { return i.size }
func (i entryInfo) Mode() fs.FileMode  { return 0o644 }
func (i entryInfo) ModTime() time.Time { return modTime }
func (i entryInfo) IsDir() bool        { return false }
func (i entryInfo) Sys() any           { return nil }

type entryFile struct {
	*bytes.Reader
	info entryInfo
}

func (f *entryFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *entryFile) Close() error               { return nil }
