package toolexec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/orchestra/internal/filelock"
	"github.com/harrison/orchestra/internal/fileutil"
)

// Workspace resolves tool-call paths relative to a fixed root and rejects
// any path that escapes it, grounding the built-in handlers on
// internal/fileutil's directory scanner for list_files.
type Workspace struct {
	root string
	// AllowWrite gates registration of write_file; disabled by default
	// since spec.md marks it as "when enabled".
	AllowWrite bool
}

// NewWorkspace returns a Workspace rooted at root, resolved to an absolute
// path.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// resolve joins rel onto the workspace root and rejects any result that
// escapes it via "..".
func (w *Workspace) resolve(rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	joined := filepath.Join(w.root, rel)
	cleanRoot := filepath.Clean(w.root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace root", rel)
	}
	return joined, nil
}

// RegisterBuiltins adds read_file, list_files, and (if w.AllowWrite)
// write_file to r.
func (w *Workspace) RegisterBuiltins(r *Registry) {
	r.Register("read_file", w.readFile)
	r.Register("list_files", w.listFiles)
	if w.AllowWrite {
		r.Register("write_file", w.writeFile)
	}
}

func argString(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (w *Workspace) readFile(args map[string]interface{}) (string, error) {
	path := argString(args, "path", "")
	if path == "" {
		return "", fmt.Errorf("read_file: path is required")
	}
	full, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

func (w *Workspace) listFiles(args map[string]interface{}) (string, error) {
	path := argString(args, "path", ".")
	full, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	result, err := fileutil.ScanDirectory(full, fileutil.ScanOptions{Recursive: true})
	if err != nil {
		return "", fmt.Errorf("list_files: %w", err)
	}
	return strings.Join(result.Files, "\n"), nil
}

func (w *Workspace) writeFile(args map[string]interface{}) (string, error) {
	path := argString(args, "path", "")
	if path == "" {
		return "", fmt.Errorf("write_file: path is required")
	}
	content, _ := args["content"].(string)
	full, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	// Lock-and-write rather than a bare os.WriteFile: a CRAFTER and a GATE
	// agent touching the same file in the same wave must never interleave
	// their writes, and a reader mid-read_file must never observe a partial
	// write.
	if err := filelock.LockAndWrite(full, []byte(content)); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}
