package fs

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// GitFS implements FileSystem by reading from a git ref (branch, tag, or commit).
type GitFS struct {
	repoPath string
	ref      string
}

// NewGitFS creates a GitFS that reads files from the given ref in the repository at repoPath.
func NewGitFS(repoPath, ref string) *GitFS {
	return &GitFS{repoPath: repoPath, ref: ref}
}

// GitAvailable reports whether a git binary is on PATH.
func GitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func (g *GitFS) command(args ...string) *exec.Cmd {
	cmd := exec.Command("git", append([]string{"-C", g.repoPath}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return cmd
}

func (g *GitFS) git(args ...string) ([]byte, error) {
	out, err := g.command(args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// Verify checks that the ref resolves to a commit in the repository.
func (g *GitFS) Verify() error {
	_, err := g.git("rev-parse", "--verify", "--quiet", g.ref+"^{commit}")
	return err
}

// ReadFile reads the contents of the file at the given path from the git ref.
func (g *GitFS) ReadFile(path string) ([]byte, error) {
	if path == "" || path == "." {
		return nil, fmt.Errorf("cannot read directory as file")
	}
	out, err := g.command("show", g.ref+":"+path).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "does not exist") || strings.Contains(stderr, "not exist") {
				return nil, os.ErrNotExist
			}
			return nil, fmt.Errorf("git show: %s", stderr)
		}
		return nil, err
	}
	return out, nil
}

// ReadDir lists the immediate children of the directory at the given path in the git ref.
func (g *GitFS) ReadDir(path string) ([]DirEntry, error) {
	args := []string{"ls-tree", "-z", g.ref}
	if path != "" && path != "." {
		args = append(args, path+"/")
	}
	out, err := g.git(args...)
	if err != nil {
		return nil, os.ErrNotExist
	}

	var entries []DirEntry
	for _, rec := range splitZ(out) {
		// Format: "<mode> <type> <hash>\t<name>"
		tabIdx := strings.IndexByte(rec, '\t')
		if tabIdx < 0 {
			continue
		}
		fields := strings.Fields(rec[:tabIdx])
		if len(fields) < 3 {
			continue
		}
		objType := fields[1]
		if objType != "tree" && objType != "blob" {
			// submodules appear as commits and have no content in this repo
			continue
		}
		entries = append(entries, DirEntry{
			Name:  baseName(rec[tabIdx+1:]),
			IsDir: objType == "tree",
		})
	}
	return entries, nil
}

// ListFiles returns every blob path reachable from the ref.
func (g *GitFS) ListFiles() ([]string, error) {
	out, err := g.git("ls-tree", "-r", "-z", "--name-only", g.ref)
	if err != nil {
		return nil, err
	}
	return splitZ(out), nil
}

func splitZ(out []byte) []string {
	var recs []string
	for _, rec := range bytes.Split(out, []byte{0}) {
		if len(rec) == 0 {
			continue
		}
		recs = append(recs, string(rec))
	}
	return recs
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
