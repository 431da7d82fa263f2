// Package tui is the terminal render surface: a bubbletea program drawing the
// counter, loaded text and mounted crate panes from state snapshots.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/CageChen/cratedeck/internal/app"
	"github.com/CageChen/cratedeck/internal/markdown"
	"github.com/CageChen/cratedeck/internal/preview"
)

// TickInterval is how often the model pulls a new snapshot.
const TickInterval = 100 * time.Millisecond

const (
	counterHeight = 10
	textHeight    = 10
)

// KeySink accepts key events for the dispatch loop.
type KeySink interface {
	Submit(ctx context.Context, k app.Key) error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("0"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	changedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Model is the bubbletea model of the terminal surface.
type Model struct {
	ctx       context.Context
	state     *app.State
	keys      KeySink
	highlight bool

	snap     app.Snapshot
	previews []preview.FilePreview
	vp       viewport.Model
	width    int
	height   int
}

// New creates the model. Keys are submitted with ctx.
func New(ctx context.Context, state *app.State, keys KeySink, highlight bool) Model {
	return Model{
		ctx:       ctx,
		state:     state,
		keys:      keys,
		highlight: highlight,
		snap:      state.Snapshot(),
		vp:        viewport.New(80, 10),
		width:     80,
		height:    30,
	}
}

// Init starts the snapshot ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles resize, tick and key messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "up":
			m.vp.LineUp(1)
			return m, nil
		case "down":
			m.vp.LineDown(1)
			return m, nil
		case "pgup":
			m.vp.ViewUp()
			return m, nil
		case "pgdown":
			m.vp.ViewDown()
			return m, nil
		}
		if err := m.keys.Submit(m.ctx, KeyFromMsg(msg)); err != nil {
			log.Printf("Dropping key %s: %v", msg, err)
		}
		return m, nil
	}
	return m, nil
}

// KeyFromMsg maps a bubbletea key message to a key event.
func KeyFromMsg(msg tea.KeyMsg) app.Key {
	switch msg.Type {
	case tea.KeyLeft:
		return app.Left
	case tea.KeyRight:
		return app.Right
	case tea.KeyRunes:
		if len(msg.Runes) == 1 && !msg.Alt {
			return app.Char(msg.Runes[0])
		}
	case tea.KeySpace:
		return app.Char(' ')
	}
	return app.Key{Code: app.KeyOther}
}

func (m *Model) refresh() {
	m.snap = m.state.Snapshot()
	if !samePreviews(m.previews, m.snap.Previews) {
		m.previews = m.snap.Previews
		m.vp.SetContent(m.renderPreviews())
		m.vp.GotoTop()
	}
}

func (m *Model) resize() {
	inner := max(m.width-2, 1)
	m.vp.Width = inner
	m.vp.Height = max(m.height-counterHeight-textHeight-5, 1)
	m.vp.SetContent(m.renderPreviews())
}

func samePreviews(a, b []preview.FilePreview) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Model) renderPreviews() string {
	lines := make([]string, 0, len(m.previews))
	for _, fp := range m.previews {
		lines = append(lines, fp.Path+": "+m.highlightLine(fp))
	}
	return lipgloss.NewStyle().Width(m.vp.Width).Render(strings.Join(lines, "\n"))
}

func (m *Model) highlightLine(fp preview.FilePreview) string {
	if !m.highlight {
		return fp.Preview
	}
	lang := markdown.Language(fp.Path)
	if lang == "" || lang == "plaintext" || lang == "text" {
		return fp.Preview
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, fp.Preview, lang, "terminal16m", "monokai"); err != nil {
		return fp.Preview
	}
	return strings.TrimRight(buf.String(), "\n")
}

// View draws the three panes.
func (m Model) View() string {
	inner := max(m.width-2, 1)

	counter := fmt.Sprintf("This is cratedeck.\nPress left and right to increment and decrement the counter respectively.\nCounter: %d", m.snap.Counter)
	counterPane := pane("cratedeck", counter, inner, counterHeight-2, lipgloss.Center)

	text := ""
	if m.snap.LoadedText != nil {
		text = *m.snap.LoadedText
	}
	textPane := pane("loaded-text", text, inner, textHeight-2, lipgloss.Center)

	status := m.snap.Status
	if m.snap.SourceChanged && m.snap.Mounted {
		status += changedStyle.Render("  (source changed, press U to reload)")
	}
	body := status + "\n \n" + m.vp.View()
	cratePane := pane("Uploaded Crate", body, inner, m.vp.Height+3, lipgloss.Left)

	return lipgloss.JoinVertical(lipgloss.Left, counterPane, textPane, cratePane)
}

// pane draws a bordered box whose content is exactly height lines, title included.
func pane(title, body string, width, height int, align lipgloss.Position) string {
	lines := strings.Split(lipgloss.NewStyle().Width(width).Render(body), "\n")
	if len(lines) > height-1 {
		lines = lines[:max(height-1, 0)]
	}
	content := titleStyle.Render(title) + "\n" + strings.Join(lines, "\n")
	return paneStyle.
		Width(width).
		Height(height).
		Align(align).
		Render(content)
}
