// Package preview derives the bounded single-line file summaries shown under the status line.
package preview

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/CageChen/cratedeck/internal/vfs"
)

// MaxRunes is the maximum length of a preview in characters.
const MaxRunes = 30

// FilePreview pairs a VFS path with its preview text.
type FilePreview struct {
	Path    string `json:"path"`
	Preview string `json:"preview"`
}

// Project builds the preview list for every file in fsys, in List order.
func Project(fsys vfs.FS) []FilePreview {
	paths := fsys.List()
	out := make([]FilePreview, 0, len(paths))
	for _, p := range paths {
		data, _ := fsys.Read(p)
		out = append(out, FilePreview{Path: p, Preview: Line(data)})
	}
	return out
}

// Line renders data as a single line of at most MaxRunes characters.
func Line(data []byte) string {
	text := strings.ReplaceAll(decodeLossy(data), "\n", " ")
	n := 0
	for i := range text {
		if n == MaxRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// Status is the message shown after a successful mount of count files.
func Status(count int) string {
	return fmt.Sprintf("Loaded %d files. Press E to export.", count)
}

func decodeLossy(data []byte) string {
	// The UTF-8 decoder replaces invalid sequences with U+FFFD instead of failing.
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}
