package modvault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"lukechampine.com/blake3"
)

// PackageInfo describes one installed package directory.
type PackageInfo struct {
	Name      string
	Path      string
	SizeBytes int64
	FileCount int
	// Digest is a blake3 hash over the package's file names and sizes,
	// filled only when the scan was asked for it.
	Digest string
}

// Library scans a destination root for installed packages. Results are
// cached until Invalidate is called or a forced scan runs; the CLI
// invalidates after every import.
type Library struct {
	root string

	mu         sync.Mutex
	cache      []PackageInfo
	cacheValid bool
	cacheDig   bool
}

func NewLibrary(root string) *Library {
	return &Library{root: root}
}

// Scan lists the installed packages under the library root. The cache is
// reused unless force is set, the cache is stale, or digests were requested
// and the cached scan ran without them. The returned slice is the caller's
// to keep; mutating it does not touch the cache.
func (l *Library) Scan(force, withDigest bool) ([]PackageInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cacheValid && !force && (l.cacheDig || !withDigest) {
		debugf("library scan: cache hit (%d packages)\n", len(l.cache))
		return append([]PackageInfo(nil), l.cache...), nil
	}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			l.cache, l.cacheValid, l.cacheDig = nil, true, withDigest
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan library %s: %w", l.root, err)
	}

	var pkgs []PackageInfo
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		pkgPath := filepath.Join(l.root, e.Name())
		size, count, err := dirStats(pkgPath)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package %s: %w", e.Name(), err)
		}
		info := PackageInfo{Name: e.Name(), Path: pkgPath, SizeBytes: size, FileCount: count}
		if withDigest {
			dig, err := packageDigest(pkgPath)
			if err != nil {
				return nil, fmt.Errorf("failed to digest package %s: %w", e.Name(), err)
			}
			info.Digest = dig
		}
		pkgs = append(pkgs, info)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })

	l.cache, l.cacheValid, l.cacheDig = pkgs, true, withDigest
	debugf("library scan: %d packages under %s\n", len(pkgs), l.root)
	return append([]PackageInfo(nil), pkgs...), nil
}

// Invalidate drops the cached scan.
func (l *Library) Invalidate() {
	l.mu.Lock()
	l.cacheValid = false
	l.mu.Unlock()
}

// packageDigest hashes the package's relative file paths and sizes. It
// identifies content layout cheaply without reading file bodies.
func packageDigest(pkgDir string) (string, error) {
	files, err := listPackageFiles(pkgDir)
	if err != nil {
		return "", err
	}
	h := blake3.New(32, nil)
	for _, f := range files {
		info, err := os.Stat(filepath.Join(pkgDir, filepath.FromSlash(f)))
		if err != nil {
			return "", err
		}
		io.WriteString(h, f)
		fmt.Fprintf(h, ":%d\n", info.Size())
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
