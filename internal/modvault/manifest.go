package modvault

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// InstalledMod is one package's entry in the ledger: the relative paths it
// installed and when it was recorded.
type InstalledMod struct {
	Files       []string  `json:"files"`
	InstallTime time.Time `json:"install_time"`
}

// manifestRecord is the on-disk shape of the ledger. file_map is the inverse
// index: relative file path -> owning package name.
type manifestRecord struct {
	InstalledMods map[string]InstalledMod `json:"installed_mods"`
	FileMap       map[string]string       `json:"file_map"`
}

// Conflict reports one file that a new installation would take over from an
// existing package.
type Conflict struct {
	File          string
	ExistingOwner string
	NewOwner      string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: owned by %s, claimed by %s", c.File, c.ExistingOwner, c.NewOwner)
}

// Manifest is the file-ownership ledger for one destination root, persisted
// as root/.manifest.json. Loading never fails: a missing or unreadable ledger
// degrades to an empty one so the tool stays usable. Persistence failures are
// reported as a boolean so callers can warn without aborting the install that
// already happened on disk.
//
// Manifest is not safe for concurrent use; imports are serialized by the
// directory lock.
type Manifest struct {
	root string
	rec  manifestRecord
}

// LoadManifest reads the ledger under root. Corrupt or structurally wrong
// content is discarded with a warning and replaced by an empty ledger.
func LoadManifest(root string) *Manifest {
	m := &Manifest{root: root}
	m.reset()

	path := m.path()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: failed to read manifest %s: %v", path, err)
		}
		return m
	}

	var rec manifestRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("Warning: manifest %s is corrupt, starting empty: %v", path, err)
		return m
	}
	if rec.InstalledMods == nil {
		rec.InstalledMods = make(map[string]InstalledMod)
	}
	if rec.FileMap == nil {
		rec.FileMap = make(map[string]string)
	}
	m.rec = rec
	return m
}

func (m *Manifest) path() string {
	return filepath.Join(m.root, manifestName)
}

func (m *Manifest) reset() {
	m.rec = manifestRecord{
		InstalledMods: make(map[string]InstalledMod),
		FileMap:       make(map[string]string),
	}
}

// Packages returns the recorded package names, sorted.
func (m *Manifest) Packages() []string {
	names := make([]string, 0, len(m.rec.InstalledMods))
	for name := range m.rec.InstalledMods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package returns the ledger entry for pkg, if present.
func (m *Manifest) Package(pkg string) (InstalledMod, bool) {
	mod, ok := m.rec.InstalledMods[pkg]
	return mod, ok
}

// Owner returns the package currently owning the relative path, if any.
func (m *Manifest) Owner(file string) (string, bool) {
	owner, ok := m.rec.FileMap[file]
	return owner, ok
}

// CheckConflicts reports every file in files already owned by a package
// other than pkg. Files pkg already owns are not conflicts; reinstalling a
// package over itself is routine.
func (m *Manifest) CheckConflicts(pkg string, files []string) []Conflict {
	var conflicts []Conflict
	for _, f := range files {
		if owner, ok := m.rec.FileMap[f]; ok && owner != pkg {
			conflicts = append(conflicts, Conflict{File: f, ExistingOwner: owner, NewOwner: pkg})
		}
	}
	return conflicts
}

// RecordInstallation records pkg as the owner of files, transferring
// ownership of any file another package held. The in-memory ledger is
// updated before persisting, so a failed save still leaves the current
// process consistent with the disk state it just created. Returns whether
// the ledger was persisted.
func (m *Manifest) RecordInstallation(pkg string, files []string) bool {
	m.rec.InstalledMods[pkg] = InstalledMod{
		Files:       append([]string(nil), files...),
		InstallTime: time.Now().UTC(),
	}
	for _, f := range files {
		m.rec.FileMap[f] = pkg
	}
	return m.save()
}

// RenamePackageRecord moves oldName's ledger entry to newName. file_map
// entries re-point only where oldName is still the owner, so files another
// package took over stay with it. A missing entry is fine, the directory may
// predate the ledger. Returns whether the ledger was persisted.
func (m *Manifest) RenamePackageRecord(oldName, newName string) bool {
	mod, ok := m.rec.InstalledMods[oldName]
	if !ok {
		return true
	}
	delete(m.rec.InstalledMods, oldName)
	m.rec.InstalledMods[newName] = mod
	for _, f := range mod.Files {
		if m.rec.FileMap[f] == oldName {
			m.rec.FileMap[f] = newName
		}
	}
	return m.save()
}

// RemovePackageRecord drops pkg from the ledger. file_map entries are removed
// only where pkg is still the owner, so a later package that took over a file
// keeps it. Returns whether the ledger was persisted.
func (m *Manifest) RemovePackageRecord(pkg string) bool {
	mod, ok := m.rec.InstalledMods[pkg]
	if !ok {
		return true
	}
	delete(m.rec.InstalledMods, pkg)
	for _, f := range mod.Files {
		if m.rec.FileMap[f] == pkg {
			delete(m.rec.FileMap, f)
		}
	}
	return m.save()
}

// Clear empties the ledger and removes the file. A missing file counts as
// success.
func (m *Manifest) Clear() bool {
	m.reset()
	if err := os.Remove(m.path()); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to remove manifest %s: %v", m.path(), err)
		return false
	}
	return true
}

// save writes the ledger atomically: temp file in the same directory, then
// rename over the final path.
func (m *Manifest) save() bool {
	data, err := json.MarshalIndent(m.rec, "", "  ")
	if err != nil {
		log.Printf("Warning: failed to encode manifest: %v", err)
		return false
	}

	path := m.path()
	tmp, err := os.CreateTemp(filepath.Dir(path), manifestName+".tmp-*")
	if err != nil {
		log.Printf("Warning: failed to create manifest temp file: %v", err)
		return false
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.Printf("Warning: failed to write manifest: %v", err)
		return false
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		log.Printf("Warning: failed to write manifest: %v", err)
		return false
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		log.Printf("Warning: failed to replace manifest: %v", err)
		return false
	}
	return true
}
