package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CageChen/cratedeck/internal/app"
	"github.com/CageChen/cratedeck/internal/markdown"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// ErrNoClient is returned when a request needs a connected browser and none is connected.
var ErrNoClient = errors.New("no browser connected")

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame is the state pushed to the browser on every change.
type Frame struct {
	app.Snapshot
	LoadedHTML string `json:"loadedHtml,omitempty"`
}

// KeySink accepts key events for the dispatch loop.
type KeySink interface {
	Submit(ctx context.Context, k app.Key) error
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHandler forwards key presses from the browser and pushes state frames back.
type WSHandler struct {
	state    *app.State
	keys     KeySink
	renderer *markdown.Renderer
	onCancel func(pickID string)
	onIdle   func()

	clients map[*client]bool
	mu      sync.RWMutex

	frameMu   sync.Mutex
	lastFrame []byte
	lastText  *string
	lastHTML  string
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(state *app.State, keys KeySink, renderer *markdown.Renderer) *WSHandler {
	return &WSHandler{
		state:    state,
		keys:     keys,
		renderer: renderer,
		clients:  make(map[*client]bool),
	}
}

// OnPickCancel registers the callback for picks the user dismissed in the browser.
func (h *WSHandler) OnPickCancel(fn func(pickID string)) {
	h.onCancel = fn
}

// OnLastClientGone registers the callback run when the last connected browser disconnects.
func (h *WSHandler) OnLastClientGone(fn func()) {
	h.onIdle = fn
}

// HandleWS handles WebSocket upgrade and connection
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	cl := &client{conn: conn}
	defer func() {
		h.removeClient(cl)
		_ = conn.Close()
		// A pick requested from a browser that went away can never be answered.
		if h.ClientCount() == 0 && h.onIdle != nil {
			h.onIdle()
		}
	}()

	h.addClient(cl)

	// New clients get the current frame without waiting for a change.
	if data, err := h.frame(); err == nil {
		_ = cl.write(data)
	}

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.handleMessage(ctx, data)
	}
}

func (h *WSHandler) handleMessage(ctx context.Context, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Ignoring malformed websocket message: %v", err)
		return
	}

	switch msg.Type {
	case "key":
		var p struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if err := h.keys.Submit(ctx, KeyFromBrowser(p.Key)); err != nil {
			log.Printf("Dropping key %q: %v", p.Key, err)
		}
	case "cancelPick":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if h.onCancel != nil {
			h.onCancel(p.ID)
		}
	}
}

// KeyFromBrowser maps a KeyboardEvent.key value to a key event.
func KeyFromBrowser(key string) app.Key {
	switch key {
	case "ArrowLeft":
		return app.Left
	case "ArrowRight":
		return app.Right
	}
	if r, size := utf8.DecodeRuneInString(key); size == len(key) && r != utf8.RuneError {
		return app.Char(r)
	}
	return app.Key{Code: app.KeyOther}
}

// Run pushes a frame to every client whenever the state changed, checking once per interval.
func (h *WSHandler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pushIfChanged()
		}
	}
}

func (h *WSHandler) pushIfChanged() {
	data, err := h.frame()
	if err != nil {
		log.Printf("Failed to encode frame: %v", err)
		return
	}

	h.frameMu.Lock()
	changed := !bytes.Equal(data, h.lastFrame)
	h.lastFrame = data
	h.frameMu.Unlock()

	if changed {
		h.broadcastRaw(data)
	}
}

func (h *WSHandler) frame() ([]byte, error) {
	snap := h.state.Snapshot()
	payload, err := json.Marshal(Frame{Snapshot: snap, LoadedHTML: h.loadedHTML(snap.LoadedText)})
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: "state", Payload: payload})
}

// loadedHTML renders the loaded text once per distinct value.
func (h *WSHandler) loadedHTML(text *string) string {
	if text == nil || h.renderer == nil {
		return ""
	}

	h.frameMu.Lock()
	defer h.frameMu.Unlock()
	if h.lastText != nil && *h.lastText == *text {
		return h.lastHTML
	}

	doc, err := h.renderer.Render([]byte(*text))
	if err != nil {
		log.Printf("Failed to render loaded text: %v", err)
		return ""
	}
	h.lastText = text
	h.lastHTML = doc.HTML
	return doc.HTML
}

// RequestPick asks the browser to open its directory picker for pick id.
func (h *WSHandler) RequestPick(id string) error {
	return h.send("pick", map[string]string{"id": id})
}

// NotifyDownload asks the browser to download url.
func (h *WSHandler) NotifyDownload(url string) error {
	return h.send("download", map[string]string{"url": url})
}

// ClientCount returns the number of connected browsers.
func (h *WSHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHandler) send(typ string, payload any) error {
	if h.ClientCount() == 0 {
		return ErrNoClient
	}
	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(WSMessage{Type: typ, Payload: p})
	if err != nil {
		return err
	}
	if h.broadcastRaw(data) == 0 {
		return ErrNoClient
	}
	return nil
}

func (h *WSHandler) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHandler) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// broadcastRaw writes data to every client and returns how many received it.
func (h *WSHandler) broadcastRaw(data []byte) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.removeClient(c)
			continue
		}
		sent++
	}
	return sent
}
