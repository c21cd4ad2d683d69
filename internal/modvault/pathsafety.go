package modvault

import (
	"path/filepath"
	"strings"
)

// resolveEntryPath resolves an archive entry name to an absolute destination
// under root. It returns a *PathTraversalError when the cleaned path is not a
// strict descendant of root: "../" sequences and absolute entry names stored
// in the archive both land outside and are rejected. Pure path math, no I/O.
func resolveEntryPath(entryName, root string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	// Absolute entry names are never legitimate in a content package.
	name := filepath.FromSlash(entryName)
	if filepath.IsAbs(name) {
		return "", &PathTraversalError{Entry: entryName}
	}

	dest := filepath.Join(root, name)
	if !strings.HasPrefix(dest, root+string(filepath.Separator)) {
		return "", &PathTraversalError{Entry: entryName}
	}

	// Join cleans the path, but double-check with Rel so a crafted name that
	// survives the prefix test (e.g. via a sibling sharing the root's prefix)
	// still fails closed.
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathTraversalError{Entry: entryName}
	}

	return dest, nil
}
