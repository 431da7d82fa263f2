package markdown

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	r := NewRenderer("")
	doc, err := r.Render([]byte("# Hello World\n\nThis is a *test*."))
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if !strings.Contains(doc.HTML, "<h1") || !strings.Contains(doc.HTML, "Hello World</h1>") {
		t.Error("expected H1 tag containing 'Hello World' in HTML")
	}
	if !strings.Contains(doc.HTML, "<em>test</em>") {
		t.Error("expected italicized test in HTML")
	}
	if doc.Title != "Hello World" {
		t.Errorf("expected title Hello World, got %s", doc.Title)
	}
}

func TestRender_DropsRawHTML(t *testing.T) {
	doc, err := NewRenderer("").Render([]byte("<script>alert(1)</script>\n"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(doc.HTML, "<script>") {
		t.Errorf("raw HTML passed through: %s", doc.HTML)
	}
}

func TestOutline(t *testing.T) {
	r := NewRenderer("")
	outline := r.outline([]byte("# Head 1\n## Head 2\n### Head 3"))
	if len(outline) != 3 {
		t.Fatalf("expected 3 headings, got %d", len(outline))
	}
	for i, h := range outline {
		if h.Level != i+1 {
			t.Errorf("heading %d level = %d", i, h.Level)
		}
	}
	if outline[1].Title != "Head 2" || outline[1].Anchor != "head-2" {
		t.Errorf("heading 1 mismatch: %+v", outline[1])
	}
}

func TestAnchor(t *testing.T) {
	tests := []struct {
		input  string
		output string
	}{
		{"Hello World", "hello-world"},
		{"Test! @# Content", "test-content"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"-Start-and-End-", "start-and-end"},
		{"中文标题", "中文标题"},
	}

	for _, tt := range tests {
		if got := anchor(tt.input); got != tt.output {
			t.Errorf("anchor(%q) = %q, want %q", tt.input, got, tt.output)
		}
	}
}

func TestRenderFile_Markdown(t *testing.T) {
	doc, ok, err := NewRenderer("").RenderFile("docs/notes.md", []byte("plain paragraph"))
	if err != nil || !ok {
		t.Fatalf("RenderFile = %v, %v", ok, err)
	}
	if doc.Title != "notes.md" {
		t.Errorf("untitled markdown should use the file name, got %s", doc.Title)
	}
	if !strings.Contains(doc.HTML, "<p>plain paragraph</p>") {
		t.Errorf("unexpected HTML %s", doc.HTML)
	}
}

func TestRenderFile_Code(t *testing.T) {
	src := "package main\n\nvar s = \"```\"\n"
	doc, ok, err := NewRenderer("").RenderFile("cmd/main.go", []byte(src))
	if err != nil || !ok {
		t.Fatalf("RenderFile = %v, %v", ok, err)
	}
	if doc.Language != "go" {
		t.Errorf("expected language go, got %q", doc.Language)
	}
	if !strings.Contains(doc.HTML, "chroma") {
		t.Errorf("expected highlighted output, got %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "package") {
		t.Error("code content missing from output")
	}
}

func TestRenderFile_Binary(t *testing.T) {
	_, ok, err := NewRenderer("").RenderFile("blob.bin", []byte{0x00, 0xff, 0x10})
	if err != nil || ok {
		t.Errorf("binary content should not render: ok=%v err=%v", ok, err)
	}
}

func TestLanguage(t *testing.T) {
	if got := Language("main.go"); got != "go" {
		t.Errorf("Language(main.go) = %q", got)
	}
	if got := Language("no-extension-here"); got != "" {
		t.Errorf("expected no language, got %q", got)
	}
}

func TestIsMarkdown(t *testing.T) {
	if !IsMarkdown("README.MD") || IsMarkdown("lib.rs") {
		t.Error("unexpected IsMarkdown result")
	}
}
