// Package handler provides the HTTP and websocket handlers of the web surface.
package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/cratedeck/internal/app"
	"github.com/CageChen/cratedeck/internal/vfs"
)

// TreeNode represents a file or directory in the mounted VFS
type TreeNode struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Path     string      `json:"path,omitempty"`
	Size     int         `json:"size,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// TreeHandler serves the directory tree of the mounted VFS
type TreeHandler struct {
	state *app.State
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(state *app.State) *TreeHandler {
	return &TreeHandler{state: state}
}

// GetTree returns the tree of the mounted VFS. The root has no children while nothing is mounted.
func (h *TreeHandler) GetTree(c *gin.Context) {
	root := &TreeNode{Name: "", Type: "root"}
	mounted := h.state.ViewVFS(func(fsys vfs.FS) {
		root = BuildTree(fsys)
	})

	c.JSON(http.StatusOK, gin.H{
		"mounted": mounted,
		"tree":    root,
	})
}

// BuildTree nests the flat VFS paths into directories. A path that is both a
// file and the prefix of other paths becomes a single directory node carrying
// the file's path and size.
func BuildTree(fsys vfs.FS) *TreeNode {
	root := &TreeNode{Type: "root"}
	nodes := map[string]*TreeNode{"": root}

	for _, p := range fsys.List() {
		data, _ := fsys.Read(p)
		parts := strings.Split(p, "/")

		parent := root
		for i := range parts[:len(parts)-1] {
			dirPath := strings.Join(parts[:i+1], "/")
			dir, ok := nodes[dirPath]
			if !ok {
				dir = &TreeNode{Name: parts[i], Path: dirPath}
				nodes[dirPath] = dir
				parent.Children = append(parent.Children, dir)
			}
			dir.Type = "directory"
			parent = dir
		}

		if n, ok := nodes[p]; ok {
			n.Size = len(data)
			continue
		}
		leaf := &TreeNode{
			Name: parts[len(parts)-1],
			Type: "file",
			Path: p,
			Size: len(data),
		}
		nodes[p] = leaf
		parent.Children = append(parent.Children, leaf)
	}

	sortTree(root)
	return root
}

// sortTree orders directories first, then files, both alphabetically
func sortTree(n *TreeNode) {
	sort.Slice(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if (a.Type == "directory") != (b.Type == "directory") {
			return a.Type == "directory"
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	for _, child := range n.Children {
		if child.Type == "directory" {
			sortTree(child)
		}
	}
}
