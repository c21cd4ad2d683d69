package modvault

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// importState tracks where an in-flight import sits in its lifecycle:
// Idle -> Validating -> SpaceChecking -> Extracting -> Reconciling -> Done.
// Any state can fall to failure or cancellation; the deferred staging cleanup
// has always run by the time either is reported upward.
type importState int

const (
	stateIdle importState = iota
	stateValidating
	stateSpaceChecking
	stateExtracting
	stateReconciling
	stateDone
	stateFailed
	stateCancelled
)

var importStateNames = [...]string{
	"idle", "validating", "space-checking", "extracting", "reconciling", "done",
	"failed", "cancelled",
}

func (s importState) String() string { return importStateNames[s] }

// ImportOptions carries the caller-provided knobs for one import.
type ImportOptions struct {
	// Overwrite removes an existing package directory of the same name
	// instead of failing with ErrAlreadyExists.
	Overwrite bool
	Progress  ProgressReporter
	Password  PasswordProvider
	// Extensions overrides the configured content allowlist when non-nil.
	Extensions map[string]bool
}

// ImportArchive runs one import end-to-end: validate the archive, guard disk
// space, extract into a hidden staging directory under root, reconcile the
// directory layout, and move the result into place as root/<archive base
// name>. The staging directory is removed on every exit path. The ownership
// manifest is never touched here; recording ownership is a separate, later
// step owned by the caller.
//
// One import per destination root at a time; mutual exclusion is the
// caller's job (see acquireImportLock).
func ImportArchive(ctx context.Context, archivePath, root string, opts ImportOptions) (target string, err error) {
	state := stateIdle
	advance := func(s importState) {
		state = s
		debugf("import %s: %s\n", filepath.Base(archivePath), state)
	}
	defer func() {
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrPasswordCancelled) {
			advance(stateCancelled)
		} else {
			advance(stateFailed)
		}
	}()

	advance(stateValidating)
	info, err := os.Stat(archivePath)
	if err != nil {
		return "", &ValidationError{Reason: fmt.Sprintf("archive not found: %s", archivePath)}
	}
	if strings.ToLower(filepath.Ext(archivePath)) != ".zip" {
		return "", &ValidationError{Reason: fmt.Sprintf("not a .zip archive: %s", filepath.Base(archivePath))}
	}

	pkgName := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination root %s: %w", root, err)
	}

	target = filepath.Join(root, pkgName)
	if _, err := os.Stat(target); err == nil {
		if !opts.Overwrite {
			return "", fmt.Errorf("%w: %s", ErrAlreadyExists, pkgName)
		}
		if err := os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("failed to remove existing package %s: %w", pkgName, err)
		}
	}

	advance(stateSpaceChecking)
	if err := checkDiskSpace(info.Size(), root); err != nil {
		return "", err
	}

	// Hidden, uniquely-named staging directory. The hash tail keeps it from
	// ever colliding with a real package name.
	staging := filepath.Join(root, ".stage-"+pkgName+"-"+hashString(archivePath)[:12])
	if err := os.RemoveAll(staging); err != nil {
		log.Printf("Warning: failed to clear stale staging directory %s: %v", staging, err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			log.Printf("Warning: failed to remove staging directory %s: %v", staging, err)
		}
	}()

	allowed := opts.Extensions
	if allowed == nil {
		allowed = allowedExtensions
	}

	advance(stateExtracting)
	reportProgress(opts.Progress, 1, "preparing: "+filepath.Base(archivePath))
	if err := extractArchive(ctx, archivePath, staging, allowed, opts.Password, opts.Progress); err != nil {
		return "", err
	}

	advance(stateReconciling)
	reportProgress(opts.Progress, 98, "arranging package files")
	if err := reconcileLayout(staging, target); err != nil {
		return "", fmt.Errorf("failed to arrange package files: %w", err)
	}

	advance(stateDone)
	reportProgress(opts.Progress, 100, "import complete")
	debugf("package imported: %s\n", target)
	return target, nil
}

// reconcileLayout moves the staged content into the final package directory.
// When exactly one top-level entry remains after ignoring noise entries and
// it is a directory, it is a wrapping folder: its children become the package
// directory's direct contents. Otherwise every top-level entry moves as-is.
func reconcileLayout(staging, target string) error {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	var top []os.DirEntry
	for _, e := range entries {
		if isNoiseEntry(e.Name()) {
			continue
		}
		top = append(top, e)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	if len(top) == 1 && top[0].IsDir() {
		inner := filepath.Join(staging, top[0].Name())
		children, err := os.ReadDir(inner)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := moveTree(filepath.Join(inner, c.Name()), filepath.Join(target, c.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	for _, e := range top {
		if err := moveTree(filepath.Join(staging, e.Name()), filepath.Join(target, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// moveTree merge-moves src to dst. A directory moving onto an existing
// directory recurses child-by-child instead of failing; a file moving onto an
// existing file overwrites it. Falls back to copy+remove when rename crosses
// a device boundary.
func moveTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.IsDir() {
		if dstInfo, err := os.Lstat(dst); err == nil {
			if dstInfo.IsDir() {
				children, err := os.ReadDir(src)
				if err != nil {
					return err
				}
				for _, c := range children {
					if err := moveTree(filepath.Join(src, c.Name()), filepath.Join(dst, c.Name())); err != nil {
						return err
					}
				}
				_ = os.Remove(src)
				return nil
			}
			if err := os.Remove(dst); err != nil {
				return err
			}
		}
		if err := os.Rename(src, dst); err == nil {
			return nil
		}
		if err := copyDir(src, dst); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
