package modvault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEntryPathSafe(t *testing.T) {
	root := t.TempDir()

	dest, err := resolveEntryPath("skins/a.dds", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "skins", "a.dds"), dest)

	dest, err = resolveEntryPath("b.blk", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.blk"), dest)
}

func TestResolveEntryPathTraversal(t *testing.T) {
	root := t.TempDir()

	cases := []string{
		"../evil.dds",
		"..",
		"a/../../evil.dds",
		"skins/../../../../etc/passwd",
	}
	for _, name := range cases {
		_, err := resolveEntryPath(name, root)
		assert.Error(t, err, "entry %q must be rejected", name)
		var perr *PathTraversalError
		assert.ErrorAs(t, err, &perr, "entry %q", name)
	}
}

func TestResolveEntryPathAbsolute(t *testing.T) {
	root := t.TempDir()

	_, err := resolveEntryPath("/etc/passwd", root)
	require.Error(t, err)
	var perr *PathTraversalError
	assert.ErrorAs(t, err, &perr)
}

func TestResolveEntryPathInnerDotDotStaysInside(t *testing.T) {
	root := t.TempDir()

	// Collapses to skins/a.dds, still under root.
	dest, err := resolveEntryPath("skins/sub/../a.dds", root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "skins", "a.dds"), dest)
}
