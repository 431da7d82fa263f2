package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/cratedeck/internal/archive"
	"github.com/CageChen/cratedeck/internal/exporter"
	"github.com/CageChen/cratedeck/internal/picker"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// UploadHandler moves files between the browser and the pick and export services.
type UploadHandler struct {
	upload    *picker.Upload
	downloads *exporter.Download
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(upload *picker.Upload, downloads *exporter.Download) *UploadHandler {
	return &UploadHandler{upload: upload, downloads: downloads}
}

// PostUpload delivers the files chosen in the browser to the waiting pick.
// The form carries "files" parts and, aligned by index, "path" values with
// each file's relative path. A single archive file is extracted.
func (h *UploadHandler) PostUpload(c *gin.Context) {
	id := c.Param("id")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	files := form.File["files"]
	paths := form.Value["path"]

	entries := make([]vfs.FileEntry, 0, len(files))
	for i, fh := range files {
		name := fh.Filename
		if i < len(paths) && paths[i] != "" {
			name = paths[i]
		}
		clean, err := cleanPath(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read " + clean})
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read " + clean})
			return
		}
		entries = append(entries, vfs.FileEntry{Path: clean, Bytes: data})
	}

	ctx := c.Request.Context()
	if len(entries) == 1 && archive.IsArchiveName(ctx, entries[0].Path) {
		extracted, err := archive.Read(ctx, entries[0].Path, entries[0].Bytes)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		entries = extracted
	}

	if err := h.upload.Deliver(id, entries); err != nil {
		if errors.Is(err, picker.ErrNoPickWaiting) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": len(entries)})
}

// CancelUpload ends the waiting pick id without files.
func (h *UploadHandler) CancelUpload(c *gin.Context) {
	if err := h.upload.Cancel(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelPick is the websocket counterpart of CancelUpload.
func (h *UploadHandler) CancelPick(id string) {
	_ = h.upload.Cancel(id)
}

// CancelWaiting ends every pick still waiting for a browser.
func (h *UploadHandler) CancelWaiting() {
	if n := h.upload.CancelAll(); n > 0 {
		log.Printf("Cancelled %d pick(s) waiting for a disconnected browser", n)
	}
}

// GetDownload serves an exported archive.
func (h *UploadHandler) GetDownload(c *gin.Context) {
	blob, ok := h.downloads.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Name))
	c.Data(http.StatusOK, blob.MediaType, blob.Data)
}

// cleanPath turns a browser-supplied relative path into a VFS path.
func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid path %q", p)
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return "", fmt.Errorf("invalid path %q", p)
	}
	return clean, nil
}
