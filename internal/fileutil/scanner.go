// Package fileutil walks a workspace directory tree on behalf of the
// list_files coordination tool, so agents can discover what exists in a
// workspace without shelling out to `find`.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ScanOptions configures one ScanDirectory call.
type ScanOptions struct {
	// Pattern is a regex matched against each filename with its extension
	// stripped.
	Pattern string
	// Extensions restricts results to these file extensions (e.g. ".md").
	Extensions []string
	// Recursive descends into subdirectories when true.
	Recursive bool
	// ExcludeDirs names directories to skip entirely (e.g. ".git", "vendor").
	ExcludeDirs []string
	// MaxDepth caps recursion depth; 0 means unbounded.
	MaxDepth int
}

// ScanResult is the outcome of one ScanDirectory call.
type ScanResult struct {
	// Files holds the absolute paths of every file that matched, sorted.
	Files []string
	// Errors collects non-fatal errors (e.g. a subdirectory that could not
	// be read) encountered while walking; the scan continues past them.
	Errors []error
}

// ScanDirectory walks dir according to opts and returns every matching
// file's absolute path, sorted for deterministic tool output.
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("access workspace path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	var nameFilter *regexp.Regexp
	if opts.Pattern != "" {
		nameFilter, err = regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
	}

	wantExt := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wantExt[strings.ToLower(ext)] = true
	}

	skipDir := make(map[string]bool, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		skipDir[d] = true
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("walk %s: %w", path, walkErr))
			return nil
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if skipDir[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				rel, _ := filepath.Rel(dir, path)
				depth := strings.Count(rel, string(filepath.Separator)) + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		name := d.Name()
		if len(wantExt) > 0 && !wantExt[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if nameFilter != nil {
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if !nameFilter.MatchString(stem) {
				return nil
			}
		}

		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("resolve %s: %w", path, absErr))
			return nil
		}
		result.Files = append(result.Files, abs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}

	sort.Strings(result.Files)
	return result, nil
}
