// Package fetch loads the text shown in the loaded-text pane.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/CageChen/cratedeck/internal/apperr"
)

// DefaultResource is fetched when no resource is configured.
const DefaultResource = "assets/sample.txt"

// Fetcher returns the text of one resource.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// HTTP fetches a resource with a GET request.
type HTTP struct {
	URL    string
	Client *http.Client
}

// Fetch issues the request. Non-2xx responses are errors.
func (h *HTTP) Fetch(ctx context.Context) (string, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", apperr.Fetch("request", h.URL, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", apperr.Fetch("get", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperr.Fetch("get", h.URL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	text, err := decode(resp.Body)
	if err != nil {
		return "", apperr.Fetch("read", h.URL, err)
	}
	return text, nil
}

// File reads a resource from a filesystem.
type File struct {
	Fs   afero.Fs
	Path string
}

// Fetch reads the file.
func (f *File) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.Fetch("read", f.Path, err)
	}
	file, err := f.Fs.Open(f.Path)
	if err != nil {
		return "", apperr.Fetch("open", f.Path, err)
	}
	defer file.Close()

	text, err := decode(file)
	if err != nil {
		return "", apperr.Fetch("read", f.Path, err)
	}
	return text, nil
}

// New returns the fetcher for a resource: HTTP for http(s) URLs, a host file otherwise.
func New(resource string) Fetcher {
	if resource == "" {
		resource = DefaultResource
	}
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") {
		log.Printf("Fetching text from %s", resource)
		return &HTTP{URL: resource}
	}
	return &File{Fs: afero.NewOsFs(), Path: resource}
}

// decode reads r as UTF-8, replacing invalid sequences.
func decode(r io.Reader) (string, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.UTF8.NewDecoder()))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
