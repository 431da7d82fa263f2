package picker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/CageChen/cratedeck/internal/apperr"
	"github.com/CageChen/cratedeck/internal/archive"
	mfs "github.com/CageChen/cratedeck/internal/fs"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// writeTree creates files under dir from a path -> content map.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func paths(entries []vfs.FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestExcluded(t *testing.T) {
	patterns := []string{".git", "target/**", "*.lock"}
	tests := []struct {
		rel  string
		want bool
	}{
		{".git", true},
		{"sub/.git", true},
		{"target/debug/app", true},
		{"Cargo.lock", true},
		{"nested/Cargo.lock", true},
		{"src/main.rs", false},
		{"targets.txt", false},
	}
	for _, tt := range tests {
		if got := Excluded(patterns, tt.rel); got != tt.want {
			t.Errorf("Excluded(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestDir_Pick(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"Cargo.toml":       "[package]",
		"src/lib.rs":       "pub fn x() {}",
		".git/HEAD":        "ref: refs/heads/main",
		"target/debug/app": "binary",
	})

	p := NewDir(mfs.NewLocalFS(dir), dir, []string{".git", "target"})
	entries, err := p.Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}

	got := paths(entries)
	want := []string{"Cargo.toml", "src/lib.rs"}
	if len(got) != len(want) {
		t.Fatalf("picked %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %s, want %s", i, got[i], want[i])
		}
	}
	if string(entries[1].Bytes) != "pub fn x() {}" {
		t.Errorf("unexpected content %q", entries[1].Bytes)
	}
}

func TestDir_PickMissingSource(t *testing.T) {
	p := NewDir(mfs.NewLocalFS(filepath.Join(t.TempDir(), "missing")), "missing", nil)
	_, err := p.Pick(context.Background())

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindPick {
		t.Errorf("expected a pick error, got %v", err)
	}
}

func TestDir_PickCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDir(mfs.NewLocalFS(dir), dir, nil).Pick(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestArchive_Pick(t *testing.T) {
	mem := afero.NewMemMapFs()
	var buf bytes.Buffer
	in := []vfs.FileEntry{
		{Path: "crate/Cargo.toml", Bytes: []byte("[package]")},
		{Path: "crate/src/lib.rs", Bytes: []byte("pub fn x() {}")},
	}
	if err := archive.Write(context.Background(), &buf, archive.FormatZip, in); err != nil {
		t.Fatal(err)
	}
	if err := mem.MkdirAll("/uploads", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(mem, "/uploads/crate.zip", buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := NewArchiveFrom(mem, "/uploads/crate.zip").Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	m := vfs.FromEntries(entries)
	if data, ok := m.Read("crate/src/lib.rs"); !ok || string(data) != "pub fn x() {}" {
		t.Errorf("crate/src/lib.rs = %q, %v", data, ok)
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 files, got %d", m.Len())
	}
}

type stubPicker struct {
	name  string
	calls int
}

func (s *stubPicker) Pick(context.Context) ([]vfs.FileEntry, error) {
	s.calls++
	return []vfs.FileEntry{{Path: s.name}}, nil
}

func TestProbing_EvaluatesAtCallTime(t *testing.T) {
	available := false
	preferred := &stubPicker{name: "preferred"}
	fallback := &stubPicker{name: "fallback"}
	p := &Probing{
		Capability: "test",
		Probe:      func() bool { return available },
		Preferred:  preferred,
		Fallback:   fallback,
	}

	entries, _ := p.Pick(context.Background())
	if entries[0].Path != "fallback" {
		t.Errorf("expected fallback while capability is missing, got %s", entries[0].Path)
	}

	available = true
	entries, _ = p.Pick(context.Background())
	if entries[0].Path != "preferred" {
		t.Errorf("expected preferred once capability appears, got %s", entries[0].Path)
	}
	if preferred.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls preferred=%d fallback=%d", preferred.calls, fallback.calls)
	}
}

func TestForSource_Directory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"README.md": "# demo"})

	entries, err := ForSource(dir, "", nil).Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "README.md" {
		t.Errorf("unexpected entries %v", paths(entries))
	}
}

func TestForSource_UnknownRefFallsBackToDisk(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"README.md": "# demo"})

	entries, err := ForSource(dir, "no-such-ref", nil).Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected the on-disk file, got %v", paths(entries))
	}
}

func TestForSource_ArchiveFile(t *testing.T) {
	var buf bytes.Buffer
	in := []vfs.FileEntry{{Path: "lib.rs", Bytes: []byte("pub fn x() {}")}}
	if err := archive.Write(context.Background(), &buf, archive.FormatTarGz, in); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(t.TempDir(), "crate-0.1.0.tar.gz")
	if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := ForSource(file, "", nil).Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "lib.rs" {
		t.Errorf("unexpected entries %v", paths(entries))
	}
}

func TestUpload_Deliver(t *testing.T) {
	requested := make(chan string, 1)
	u := NewUpload(func(id string) error {
		requested <- id
		return nil
	})

	type result struct {
		entries []vfs.FileEntry
		err     error
	}
	done := make(chan result, 1)
	go func() {
		entries, err := u.Pick(context.Background())
		done <- result{entries, err}
	}()

	id := <-requested
	if err := u.Deliver(id, []vfs.FileEntry{{Path: "a.txt", Bytes: []byte("hi")}}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil || len(r.entries) != 1 || r.entries[0].Path != "a.txt" {
			t.Errorf("Pick = %v, %v", r.entries, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Pick did not return after Deliver")
	}

	if err := u.Deliver(id, nil); !errors.Is(err, ErrNoPickWaiting) {
		t.Errorf("second delivery should fail with ErrNoPickWaiting, got %v", err)
	}
}

func TestUpload_Cancel(t *testing.T) {
	requested := make(chan string, 1)
	u := NewUpload(func(id string) error {
		requested <- id
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := u.Pick(context.Background())
		errCh <- err
	}()

	if err := u.Cancel(<-requested); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrPickCanceled) {
		t.Errorf("expected ErrPickCanceled, got %v", err)
	}
	if u.Waiting() != 0 {
		t.Errorf("cancelled pick still waiting")
	}
}

func TestUpload_RequestFails(t *testing.T) {
	u := NewUpload(func(string) error { return errors.New("no browser connected") })
	if _, err := u.Pick(context.Background()); err == nil {
		t.Error("expected Pick to fail when the browser cannot be asked")
	}
	if u.Waiting() != 0 {
		t.Error("failed request left a waiting pick behind")
	}
}

func TestUpload_ContextCancelled(t *testing.T) {
	u := NewUpload(func(string) error { return nil })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := u.Pick(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestUpload_CancelAll(t *testing.T) {
	requested := make(chan string, 2)
	u := NewUpload(func(id string) error {
		requested <- id
		return nil
	})

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := u.Pick(context.Background())
			errCh <- err
		}()
		<-requested
	}

	if n := u.CancelAll(); n != 2 {
		t.Errorf("CancelAll = %d, want 2", n)
	}
	for i := 0; i < 2; i++ {
		if err := <-errCh; !errors.Is(err, ErrPickCanceled) {
			t.Errorf("expected ErrPickCanceled, got %v", err)
		}
	}
	if u.Waiting() != 0 {
		t.Errorf("Waiting = %d after CancelAll", u.Waiting())
	}
	if n := u.CancelAll(); n != 0 {
		t.Errorf("second CancelAll = %d, want 0", n)
	}
}
