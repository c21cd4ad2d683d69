package modvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yeka/zip"
)

const (
	extractChunkSize  = 32 * 1024
	progressInterval  = 100 * time.Millisecond
	progressNameWidth = 25
)

// archiveEntry pairs a zip entry with its recovered display name.
type archiveEntry struct {
	file  *zip.File
	name  string
	isDir bool
}

// isNoiseEntry reports whether any path segment is archive metadata or an OS
// marker file (resource forks, desktop.ini and friends).
func isNoiseEntry(name string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(name), "/") {
		for noise := range noiseNames {
			if strings.EqualFold(seg, noise) {
				return true
			}
		}
	}
	return false
}

// extractArchive streams the archive's entries into stagingDir.
//
// The entry list is validated against the extension allowlist before a single
// byte is written, so a rejected archive has zero side effects. Entries whose
// resolved path escapes stagingDir are skipped with a warning and extraction
// continues. Encrypted entries prompt through pw; a cancelled prompt aborts
// the whole operation with ErrPasswordCancelled.
func extractArchive(ctx context.Context, archivePath, stagingDir string, allowed map[string]bool, pw PasswordProvider, prog ProgressReporter) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("invalid ZIP archive %s: %v", filepath.Base(archivePath), err)}
	}
	defer r.Close()

	archiveName := filepath.Base(archivePath)

	// Pre-scan: decode names, drop noise, collect every disallowed entry so
	// the rejection message lists them all.
	var entries []archiveEntry
	var invalid []string
	var totalBytes uint64
	fileCount := 0
	for _, f := range r.File {
		name := decodeEntryName(f.Name)
		if isNoiseEntry(name) {
			continue
		}
		isDir := strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
		if !isDir {
			ext := strings.ToLower(filepath.Ext(name))
			if ext != "" && !allowed[ext] {
				invalid = append(invalid, name)
				continue
			}
			totalBytes += f.UncompressedSize64
			fileCount++
		}
		entries = append(entries, archiveEntry{file: f, name: name, isDir: isDir})
	}
	if len(invalid) > 0 {
		return &ValidationError{
			Reason: fmt.Sprintf("archive %s contains disallowed file types", archiveName),
			Files:  invalid,
		}
	}

	st := &extractProgress{prog: prog, total: totalBytes, fileCount: fileCount}

	var password string
	havePassword := false

	fileIdx := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		dest, err := resolveEntryPath(e.name, stagingDir)
		if err != nil {
			log.Printf("Warning: skipping archive entry: %v", err)
			continue
		}

		if e.isDir {
			// Created but never reported as a progress milestone.
			if err := os.MkdirAll(dest, 0o755); err != nil {
				log.Printf("Warning: failed to create directory %s: %v", e.name, err)
			}
			continue
		}

		st.startEntry(fileIdx, e.name)
		fileIdx++

		if err := extractFileEntry(e, dest, archiveName, &password, &havePassword, pw, st); err != nil {
			return err
		}
	}

	return nil
}

// extractFileEntry writes one file entry, handling the password lifecycle.
// A failed open or read on an encrypted entry is treated as a wrong password:
// the partial file is discarded and the provider is re-asked with reason
// incorrect until it succeeds or the user cancels.
func extractFileEntry(e archiveEntry, dest, archiveName string, password *string, havePassword *bool, pw PasswordProvider, st *extractProgress) error {
	reason := PasswordFirst
	for {
		if e.file.IsEncrypted() {
			if !*havePassword {
				if pw == nil {
					return ErrPasswordCancelled
				}
				p, ok := requestPassword(pw, archiveName, reason)
				if !ok {
					return ErrPasswordCancelled
				}
				*password = p
				*havePassword = true
			}
			e.file.SetPassword(*password)
		}

		err := writeEntry(e.file, dest, st)
		if err == nil {
			return nil
		}

		// Only failures reading the archive stream mean a bad password.
		// Local filesystem errors (disk full, permissions) are fatal no
		// matter what would re-typing the password change.
		var lwe *localWriteError
		if e.file.IsEncrypted() && !errors.As(err, &lwe) {
			debugf("decryption failed for %s, re-prompting: %v\n", e.name, err)
			*havePassword = false
			reason = PasswordIncorrect
			continue
		}
		return fmt.Errorf("failed to extract %s: %w", e.name, err)
	}
}

// localWriteError marks a failure on the destination filesystem, as opposed
// to a failure opening or reading the archive stream. Decryption retries
// must never trigger on these.
type localWriteError struct{ err error }

func (e *localWriteError) Error() string { return e.err.Error() }
func (e *localWriteError) Unwrap() error { return e.err }

// writeEntry streams one entry to dest in fixed-size chunks. On failure the
// partial file is removed and the byte accounting rolled back so a retry does
// not double-count.
func writeEntry(f *zip.File, dest string, st *extractProgress) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &localWriteError{err}
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &localWriteError{err}
	}

	var written int64
	fail := func(err error) error {
		out.Close()
		os.Remove(dest)
		st.addBytes(-written)
		return err
	}

	buf := make([]byte, extractChunkSize)
	for {
		n, rerr := rc.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fail(&localWriteError{werr})
			}
			written += int64(n)
			st.addBytes(int64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail(rerr)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(dest)
		st.addBytes(-written)
		return &localWriteError{err}
	}
	return nil
}

// requestPassword invokes the provider, converting a panic into cancellation
// so a broken callback cannot unwind the pipeline.
func requestPassword(pw PasswordProvider, archiveName string, reason PasswordReason) (p string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			debugf("password provider panicked: %v\n", r)
			p, ok = "", false
		}
	}()
	return pw.RequestPassword(archiveName, reason)
}

// extractProgress throttles progress reports by wall-clock time so archives
// with thousands of tiny entries do not flood the reporter.
type extractProgress struct {
	prog       ProgressReporter
	total      uint64
	done       int64
	fileCount  int
	fileIdx    int
	current    string
	lastReport time.Time
}

func (p *extractProgress) startEntry(idx int, name string) {
	p.fileIdx = idx
	p.current = name
	p.maybeReport()
}

func (p *extractProgress) addBytes(n int64) {
	p.done += n
	if p.done < 0 {
		p.done = 0
	}
	p.maybeReport()
}

func (p *extractProgress) maybeReport() {
	if p.prog == nil {
		return
	}
	now := time.Now()
	if now.Sub(p.lastReport) < progressInterval {
		return
	}
	p.lastReport = now

	pct := 0
	if p.total > 0 {
		pct = int(uint64(p.done) * 100 / p.total)
	} else if p.fileCount > 0 {
		pct = p.fileIdx * 100 / p.fileCount
	}
	reportProgress(p.prog, pct, "extracting: "+truncateName(p.current, progressNameWidth))
}
