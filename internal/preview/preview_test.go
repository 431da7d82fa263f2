package preview

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/CageChen/cratedeck/internal/vfs"
)

// countingFS records how often each path is read.
type countingFS struct {
	files map[string]string
	order []string
	reads map[string]int
}

func (c *countingFS) List() []string { return c.order }

func (c *countingFS) Read(path string) ([]byte, bool) {
	c.reads[path]++
	s, ok := c.files[path]
	if !ok {
		return nil, false
	}
	return []byte(s), true
}

func (c *countingFS) Write(path string, data []byte) { c.files[path] = string(data) }

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"newline collapsed", "hello\nworld", "hello world"},
		{"empty", "", ""},
		{"exactly thirty", strings.Repeat("x", 30), strings.Repeat("x", 30)},
		{"forty truncated", strings.Repeat("abcd", 10), strings.Repeat("abcd", 7) + "ab"},
		{"multibyte counted as characters", strings.Repeat("é", 40), strings.Repeat("é", 30)},
		{"every newline replaced", "a\n\nb\n", "a  b "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Line([]byte(tt.in)); got != tt.want {
				t.Errorf("Line(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLine_InvalidUTF8IsReplaced(t *testing.T) {
	got := Line([]byte{'o', 'k', 0xff, 0xfe, '!'})
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, "ok") || !strings.HasSuffix(got, "!") {
		t.Errorf("valid bytes around the invalid run were lost: %q", got)
	}
	if !strings.ContainsRune(got, utf8.RuneError) {
		t.Errorf("expected a replacement character in %q", got)
	}
}

func TestProject_Scenario(t *testing.T) {
	m := vfs.FromEntries([]vfs.FileEntry{
		{Path: "b/c.txt", Bytes: []byte("line1\nline2 with extra text beyond thirty chars")},
		{Path: "a.txt", Bytes: []byte("hi")},
	})

	got := Project(m)
	want := []FilePreview{
		{Path: "a.txt", Preview: "hi"},
		{Path: "b/c.txt", Preview: "line1 line2 with extra text be"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d previews, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("preview %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if s := Status(len(got)); s != "Loaded 2 files. Press E to export." {
		t.Errorf("Status = %q", s)
	}
}

func TestProject_ReadsEachListedPathOnce(t *testing.T) {
	fake := &countingFS{
		files: map[string]string{"one": "1", "two": "2"},
		order: []string{"one", "two", "ghost"},
		reads: map[string]int{},
	}

	got := Project(fake)
	if len(got) != 3 {
		t.Fatalf("expected one preview per listed path, got %d", len(got))
	}
	if got[2].Preview != "" {
		t.Errorf("unreadable path should preview as empty, got %q", got[2].Preview)
	}
	for _, p := range fake.order {
		if fake.reads[p] != 1 {
			t.Errorf("path %s read %d times", p, fake.reads[p])
		}
	}
}
