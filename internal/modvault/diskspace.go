package modvault

import (
	"log"

	"golang.org/x/sys/unix"
)

// Footprint estimate for extracting an archive of a given compressed size.
// The expansion factor covers compression-ratio uncertainty; the safety
// margin covers staging and the final copy coexisting briefly.
const (
	spaceExpansionFactor = 3
	spaceSafetyMargin    = 2
)

// statfsFree queries the free bytes available on the volume containing path.
// Package variable so tests can stub the platform call.
var statfsFree = func(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// checkDiskSpace verifies the volume holding targetDir has room for an
// extraction of archiveSize compressed bytes. A failing space query logs and
// passes: missing space data is not itself a fatal condition, and blocking a
// valid import on an unreliable platform query is worse than proceeding.
func checkDiskSpace(archiveSize int64, targetDir string) error {
	if archiveSize < 0 {
		archiveSize = 0
	}
	required := uint64(archiveSize) * spaceExpansionFactor * spaceSafetyMargin

	free, err := statfsFree(targetDir)
	if err != nil {
		log.Printf("Warning: disk space check failed for %s (skipped): %v", targetDir, err)
		return nil
	}

	if free < required {
		return &InsufficientSpaceError{Required: required, Free: free}
	}
	return nil
}
