package modvault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Characters rejected in package names. The library may sit on a Windows
// game volume, so the strict set applies everywhere.
const packageNameBadChars = `<>:"/\|?*`

func validatePackageName(name string) error {
	if name == "" || len(name) > 255 {
		return &ValidationError{Reason: "package name must be 1 to 255 characters"}
	}
	if strings.ContainsAny(name, packageNameBadChars) {
		return &ValidationError{Reason: fmt.Sprintf("package name %q contains reserved characters (%s)", name, packageNameBadChars)}
	}
	// Dotted names collide with the manifest, lock and staging entries and
	// would vanish from scans.
	if strings.HasPrefix(name, ".") {
		return &ValidationError{Reason: fmt.Sprintf("package name %q may not start with a dot", name)}
	}
	return nil
}

// RenamePackage renames an installed package directory in place under root.
// The ledger is not touched here; callers move the ledger entry with
// RenamePackageRecord and invalidate their scan caches afterwards.
func RenamePackage(root, oldName, newName string) error {
	if err := validatePackageName(newName); err != nil {
		return err
	}

	oldDir := filepath.Join(root, oldName)
	newDir := filepath.Join(root, newName)

	if info, err := os.Stat(oldDir); err != nil || !info.IsDir() {
		return &ValidationError{Reason: fmt.Sprintf("package not installed: %s", oldName)}
	}
	if _, err := os.Lstat(newDir); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, newName)
	}

	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldName, newName, err)
	}
	debugf("renamed package: %s -> %s\n", oldName, newName)
	return nil
}
