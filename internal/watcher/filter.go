package watcher

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultReservedNames are entry names the pipeline never offers for
// relocation. They match the standard home-directory folders a user would
// not want shuffled around by an automated tool.
var DefaultReservedNames = []string{
	"Library",
	"Applications",
	"Desktop",
	"Documents",
	"Downloads",
}

// Filter decides whether a detected entry is eligible for processing.
// It is stateless; every call inspects the filesystem fresh.
type Filter struct {
	root     string
	reserved map[string]bool
}

// NewFilter creates a filter for the given watch root. A nil reserved list
// selects DefaultReservedNames; pass an empty slice to reserve nothing.
func NewFilter(root string, reserved []string) *Filter {
	if reserved == nil {
		reserved = DefaultReservedNames
	}
	set := make(map[string]bool, len(reserved))
	for _, name := range reserved {
		set[name] = true
	}
	return &Filter{
		root:     filepath.Clean(root),
		reserved: set,
	}
}

// Eligible reports whether the entry at path should enter the pipeline.
// Rejected: hidden names, reserved names, symlinks whose target resolves
// outside the watch root, and paths that no longer exist.
func (f *Filter) Eligible(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return false
	}
	if f.reserved[base] {
		return false
	}

	info, err := os.Lstat(path)
	if err != nil {
		// Vanished between detection and filtering.
		return false
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return f.symlinkContained(path)
	}

	return true
}

// symlinkContained reports whether a symlink's target resolves inside the
// watch root. Dangling links are rejected since containment cannot be
// verified.
func (f *Filter) symlinkContained(path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}

	root, err := filepath.EvalSymlinks(f.root)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
