// Package fileutil centralizes directory-tree scanning so the list_files
// coordination tool, and anything else that needs to enumerate a
// workspace, doesn't reimplement filepath.WalkDir filtering logic.
//
// # Usage
//
// List every file under a workspace root:
//
//	result, err := fileutil.ScanDirectory(workspaceRoot, fileutil.ScanOptions{
//	    Recursive: true,
//	})
//
// Restrict to a plan's task files while skipping VCS and dependency
// directories:
//
//	result, err := fileutil.ScanDirectory(workspaceRoot, fileutil.ScanOptions{
//	    Extensions:  []string{".md"},
//	    Recursive:   true,
//	    ExcludeDirs: []string{".git", "node_modules", "vendor"},
//	})
//
// ScanResult.Errors collects non-fatal errors (e.g. a subdirectory the
// scanning process can't read); ScanDirectory only returns a top-level
// error when the root itself can't be walked at all or the pattern given
// doesn't compile.
//
// Directories named with a leading "." are always skipped, on top of
// whatever ExcludeDirs lists, so a recursive scan never wanders into
// .git by accident.
package fileutil
