// Package monitor watches source trees for changes and runs each changed
// file through analysis, record storage and alert evaluation.
package monitor

import (
	"path/filepath"
	"strings"
)

// DefaultExtensions lists the web source file types analyzed when no
// explicit list is configured.
var DefaultExtensions = []string{
	".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs",
	".html", ".htm", ".vue", ".svelte",
	".css", ".scss", ".sass", ".less",
}

// DefaultIgnoreDirs lists directory names skipped at any depth.
var DefaultIgnoreDirs = []string{"node_modules", ".git", "dist", "build", "coverage", "vendor"}

// Filter decides which filesystem paths the monitor analyzes.
type Filter struct {
	extensions map[string]struct{}
	ignoreDirs map[string]struct{}
}

// NewFilter builds a filter from extension and directory-name lists. Empty
// lists fall back to the defaults.
func NewFilter(extensions, ignoreDirs []string) *Filter {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if len(ignoreDirs) == 0 {
		ignoreDirs = DefaultIgnoreDirs
	}
	f := &Filter{
		extensions: make(map[string]struct{}, len(extensions)),
		ignoreDirs: make(map[string]struct{}, len(ignoreDirs)),
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = struct{}{}
	}
	for _, dir := range ignoreDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		f.ignoreDirs[dir] = struct{}{}
	}
	return f
}

// IgnoredDir reports whether a directory name is excluded from watching.
// Hidden directories are excluded regardless of the configured list.
func (f *Filter) IgnoredDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := f.ignoreDirs[name]
	return ok
}

// Relevant reports whether a file should be analyzed: its extension must
// match and no directory on its path may be ignored.
func (f *Filter) Relevant(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := f.extensions[ext]; !ok {
		return false
	}
	elems := strings.Split(filepath.ToSlash(path), "/")
	for _, elem := range elems[:len(elems)-1] {
		if elem == "" || elem == "." || elem == ".." {
			continue
		}
		if f.IgnoredDir(elem) {
			return false
		}
	}
	return true
}
