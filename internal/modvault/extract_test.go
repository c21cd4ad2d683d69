package modvault

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeka/zip"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasSuffix(name, "/") {
			_, err := zw.CreateHeader(&zip.FileHeader{Name: name})
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writeEncryptedZip(t *testing.T, path, password string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zw.Encrypt(name, password, zip.AES256Encryption)
		require.NoError(t, err)
		_, err = w.Write([]byte(entries[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractArchivePlain(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "skin.zip")
	writeZip(t, archive, map[string]string{
		"skin/":           "",
		"skin/a.dds":      "texture bytes",
		"skin/sub/b.blk":  "config bytes",
		"skin/banner.tga": "banner bytes",
	})

	staging := t.TempDir()
	err := extractArchive(context.Background(), archive, staging, allowedExtensions, nil, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(staging, "skin", "a.dds"))
	require.NoError(t, err)
	assert.Equal(t, "texture bytes", string(data))
	assert.FileExists(t, filepath.Join(staging, "skin", "sub", "b.blk"))
	assert.FileExists(t, filepath.Join(staging, "skin", "banner.tga"))
}

func TestExtractArchiveDisallowedTypesRejectedBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "bad.zip")
	writeZip(t, archive, map[string]string{
		"a.dds":    "fine",
		"evil.exe": "nope",
		"also.bat": "nope",
	})

	staging := t.TempDir()
	err := extractArchive(context.Background(), archive, staging, allowedExtensions, nil, nil)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"evil.exe", "also.bat"}, verr.Files)

	// Rejection happens in the pre-scan: nothing was written, not even the
	// allowed entry.
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractArchiveNoiseEntriesSkipped(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "noisy.zip")
	writeZip(t, archive, map[string]string{
		"__MACOSX/":           "",
		"__MACOSX/._a.dds":    "resource fork",
		"skin/a.dds":          "real",
		"skin/desktop.ini":    "marker",
		"skin/__MACOSX/x.exe": "never validated",
		"skin/.DS_Store":      "marker",
	})

	staging := t.TempDir()
	err := extractArchive(context.Background(), archive, staging, allowedExtensions, nil, nil)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(staging, "skin", "a.dds"))
	assert.NoDirExists(t, filepath.Join(staging, "__MACOSX"))
	assert.NoFileExists(t, filepath.Join(staging, "skin", "desktop.ini"))
	assert.NoFileExists(t, filepath.Join(staging, "skin", ".DS_Store"))
}

func TestExtractArchiveTraversalEntrySkipped(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "sneaky.zip")
	writeZip(t, archive, map[string]string{
		"../escape.dds": "outside",
		"inside.dds":    "inside",
	})

	parent := t.TempDir()
	staging := filepath.Join(parent, "staging")
	require.NoError(t, os.MkdirAll(staging, 0o755))

	err := extractArchive(context.Background(), archive, staging, allowedExtensions, nil, nil)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(staging, "inside.dds"))
	assert.NoFileExists(t, filepath.Join(parent, "escape.dds"))
}

func TestExtractArchiveInvalidContainer(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "garbage.zip")
	require.NoError(t, os.WriteFile(archive, []byte("this is not a zip"), 0o644))

	err := extractArchive(context.Background(), archive, t.TempDir(), allowedExtensions, nil, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestExtractArchiveEncryptedRetry(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "locked.zip")
	writeEncryptedZip(t, archive, "secret", map[string]string{
		"a.dds": "hidden texture",
		"b.blk": "hidden config",
	})

	var reasons []PasswordReason
	attempts := []string{"wrong", "secret"}
	provider := PasswordFunc(func(name string, reason PasswordReason) (string, bool) {
		assert.Equal(t, "locked.zip", name)
		reasons = append(reasons, reason)
		p := attempts[0]
		if len(attempts) > 1 {
			attempts = attempts[1:]
		}
		return p, true
	})

	staging := t.TempDir()
	err := extractArchive(context.Background(), archive, staging, allowedExtensions, provider, nil)
	require.NoError(t, err)

	require.Equal(t, []PasswordReason{PasswordFirst, PasswordIncorrect}, reasons)

	data, err := os.ReadFile(filepath.Join(staging, "a.dds"))
	require.NoError(t, err)
	assert.Equal(t, "hidden texture", string(data))
	assert.FileExists(t, filepath.Join(staging, "b.blk"))
}

func TestExtractArchiveEncryptedCorrectFirstTry(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "locked.zip")
	writeEncryptedZip(t, archive, "secret", map[string]string{"a.dds": "x"})

	calls := 0
	provider := PasswordFunc(func(string, PasswordReason) (string, bool) {
		calls++
		return "secret", true
	})

	err := extractArchive(context.Background(), archive, t.TempDir(), allowedExtensions, provider, nil)
	require.NoError(t, err)
	// The password is cached across entries; one archive, one prompt.
	assert.Equal(t, 1, calls)
}

func TestExtractArchiveEncryptedCancel(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "locked.zip")
	writeEncryptedZip(t, archive, "secret", map[string]string{"a.dds": "x"})

	provider := PasswordFunc(func(string, PasswordReason) (string, bool) {
		return "", false
	})

	staging := t.TempDir()
	err := extractArchive(context.Background(), archive, staging, allowedExtensions, provider, nil)
	require.ErrorIs(t, err, ErrPasswordCancelled)
	assert.NoFileExists(t, filepath.Join(staging, "a.dds"))
}

func TestExtractArchiveEncryptedLocalWriteFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "locked.zip")
	writeEncryptedZip(t, archive, "secret", map[string]string{"a.dds": "x"})

	// A regular file where the staging parent should be makes every mkdir
	// under it fail, for any user.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	staging := filepath.Join(blocker, "staging")

	calls := 0
	provider := PasswordFunc(func(_ string, reason PasswordReason) (string, bool) {
		calls++
		assert.Equal(t, PasswordFirst, reason)
		return "secret", true
	})

	err := extractArchive(context.Background(), archive, staging, allowedExtensions, provider, nil)
	require.Error(t, err)
	// A destination-side failure is not a wrong password: no re-prompt, no
	// cancel sentinel, just a fatal extraction error.
	require.NotErrorIs(t, err, ErrPasswordCancelled)
	assert.Contains(t, err.Error(), "failed to extract")
	assert.Equal(t, 1, calls)
}

func TestExtractArchiveEncryptedNoProvider(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "locked.zip")
	writeEncryptedZip(t, archive, "secret", map[string]string{"a.dds": "x"})

	err := extractArchive(context.Background(), archive, t.TempDir(), allowedExtensions, nil, nil)
	require.ErrorIs(t, err, ErrPasswordCancelled)
}

func TestExtractArchiveCancelledContext(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "skin.zip")
	writeZip(t, archive, map[string]string{"a.dds": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := extractArchive(ctx, archive, t.TempDir(), allowedExtensions, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtractArchiveProgressReaches100(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "skin.zip")
	writeZip(t, archive, map[string]string{
		"a.dds": strings.Repeat("x", 64*1024),
		"b.blk": strings.Repeat("y", 64*1024),
	})

	var last int
	prog := ProgressFunc(func(percent int, message string) { last = percent })

	err := extractArchive(context.Background(), archive, t.TempDir(), allowedExtensions, nil, prog)
	require.NoError(t, err)
	assert.LessOrEqual(t, last, 100)
}

func TestIsNoiseEntry(t *testing.T) {
	assert.True(t, isNoiseEntry("__MACOSX/._a.dds"))
	assert.True(t, isNoiseEntry("skin/__macosx/x"))
	assert.True(t, isNoiseEntry("desktop.ini"))
	assert.True(t, isNoiseEntry("skin/Thumbs.db"))
	assert.False(t, isNoiseEntry("skin/a.dds"))
	assert.False(t, isNoiseEntry("macosx_like.dds"))
}
