// Package markdown renders loaded text and mounted files to HTML for the web surface,
// using goldmark with GFM extensions and chroma syntax highlighting.
package markdown

import (
	"bytes"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Heading is one entry of a document outline.
type Heading struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

// Document is a rendered file or text.
type Document struct {
	HTML     string    `json:"html"`
	Title    string    `json:"title"`
	Outline  []Heading `json:"outline"`
	Language string    `json:"language,omitempty"`
}

// Renderer converts markdown and source code to HTML.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer. Raw HTML in sources is not passed through,
// since mounted files come from the user's disk or an uploaded archive.
func NewRenderer(style string) *Renderer {
	if style == "" {
		style = "monokai"
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &Renderer{md: md}
}

// Render converts markdown source to HTML and extracts its outline.
func (r *Renderer) Render(source []byte) (*Document, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return nil, err
	}

	outline := r.outline(source)
	title := ""
	if len(outline) > 0 {
		title = outline[0].Title
	}

	return &Document{
		HTML:    buf.String(),
		Title:   title,
		Outline: outline,
	}, nil
}

// RenderFile renders a mounted file: markdown as a document, anything else as a
// highlighted code block. ok is false for binary content.
func (r *Renderer) RenderFile(name string, content []byte) (*Document, bool, error) {
	if !utf8.Valid(content) || bytes.IndexByte(content, 0) >= 0 {
		return nil, false, nil
	}
	if IsMarkdown(name) {
		doc, err := r.Render(content)
		if err != nil {
			return nil, false, err
		}
		if doc.Title == "" {
			doc.Title = path.Base(name)
		}
		return doc, true, nil
	}

	lang := Language(name)
	fence := strings.Repeat("`", max(3, longestRun(content, '`')+1))

	var src bytes.Buffer
	src.WriteString(fence + lang + "\n")
	src.Write(content)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		src.WriteByte('\n')
	}
	src.WriteString(fence + "\n")

	var buf bytes.Buffer
	if err := r.md.Convert(src.Bytes(), &buf); err != nil {
		return nil, false, err
	}
	return &Document{
		HTML:     buf.String(),
		Title:    path.Base(name),
		Language: lang,
	}, true, nil
}

// IsMarkdown reports whether name has a markdown extension.
func IsMarkdown(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Language returns the chroma language alias for a file name, or "" if none matches.
func Language(name string) string {
	lexer := lexers.Match(path.Base(name))
	if lexer == nil {
		return ""
	}
	cfg := lexer.Config()
	if len(cfg.Aliases) > 0 {
		return cfg.Aliases[0]
	}
	return strings.ToLower(cfg.Name)
}

func (r *Renderer) outline(source []byte) []Heading {
	doc := r.md.Parser().Parse(text.NewReader(source))

	var out []Heading
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title := nodeText(h, source)
			out = append(out, Heading{
				Level:  h.Level,
				Title:  title,
				Anchor: anchor(title),
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil
	}
	return out
}

func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

var (
	anchorStrip  = regexp.MustCompile(`[^a-z0-9\-\p{Han}\p{Hiragana}\p{Katakana}]`)
	anchorHyphen = regexp.MustCompile(`-+`)
)

func anchor(title string) string {
	a := strings.ReplaceAll(strings.ToLower(title), " ", "-")
	a = anchorStrip.ReplaceAllString(a, "")
	a = anchorHyphen.ReplaceAllString(a, "-")
	return strings.Trim(a, "-")
}

func longestRun(data []byte, c byte) int {
	longest, run := 0, 0
	for _, b := range data {
		if b == c {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return longest
}
