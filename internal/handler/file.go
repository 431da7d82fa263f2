package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/cratedeck/internal/app"
	"github.com/CageChen/cratedeck/internal/markdown"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// FileResponse represents the response for a file request
type FileResponse struct {
	Path     string             `json:"path"`
	Title    string             `json:"title"`
	HTML     string             `json:"html"`
	Outline  []markdown.Heading `json:"outline,omitempty"`
	Language string             `json:"language,omitempty"`
	Size     int                `json:"size"`
}

// FileHandler serves files of the mounted VFS
type FileHandler struct {
	state    *app.State
	renderer *markdown.Renderer
}

// NewFileHandler creates a new file handler
func NewFileHandler(state *app.State, renderer *markdown.Renderer) *FileHandler {
	return &FileHandler{state: state, renderer: renderer}
}

// read looks the request path up in the mounted VFS and writes the error response itself.
func (h *FileHandler) read(c *gin.Context) (string, []byte, bool) {
	filePath := strings.TrimPrefix(c.Param("path"), "/")
	if filePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing path"})
		return "", nil, false
	}

	var (
		content []byte
		found   bool
	)
	mounted := h.state.ViewVFS(func(fsys vfs.FS) {
		content, found = fsys.Read(filePath)
	})
	if !mounted {
		c.JSON(http.StatusConflict, gin.H{"error": "no crate mounted"})
		return "", nil, false
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return "", nil, false
	}
	return filePath, content, true
}

// GetFile returns a mounted file rendered to HTML
func (h *FileHandler) GetFile(c *gin.Context) {
	filePath, content, ok := h.read(c)
	if !ok {
		return
	}

	doc, ok, err := h.renderer.RenderFile(filePath, content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to render file: " + err.Error(),
		})
		return
	}
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{
			"error": "binary file",
			"raw":   "/api/raw/" + filePath,
		})
		return
	}

	c.JSON(http.StatusOK, FileResponse{
		Path:     filePath,
		Title:    doc.Title,
		HTML:     doc.HTML,
		Outline:  doc.Outline,
		Language: doc.Language,
		Size:     len(content),
	})
}

// GetRaw returns the bytes of a mounted file
func (h *FileHandler) GetRaw(c *gin.Context) {
	filePath, content, ok := h.read(c)
	if !ok {
		return
	}

	contentType := http.DetectContentType(content)
	switch {
	case markdown.IsMarkdown(filePath):
		contentType = "text/markdown; charset=utf-8"
	case utf8.Valid(content):
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, content)
}
