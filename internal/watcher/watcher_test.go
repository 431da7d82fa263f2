package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "target"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(dir, []string{"target"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	events := make(chan Event, 16)
	w.OnChange(func(e Event) { events <- e })
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "target", "ignored.o"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lib.rs"), []byte("pub fn x() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if filepath.Base(filepath.Dir(e.Path)) == "target" {
				t.Fatalf("excluded path reported: %s", e.Path)
			}
			if filepath.Base(e.Path) == "lib.rs" {
				return
			}
		case <-deadline:
			t.Fatal("no event for lib.rs")
		}
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("first Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if err := w.Start(); err == nil {
		t.Error("expected Start to fail for a missing root")
	}
}

func TestEventType_String(t *testing.T) {
	if EventWrite.String() != "write" || EventType(99).String() != "unknown" {
		t.Error("unexpected event type names")
	}
}
