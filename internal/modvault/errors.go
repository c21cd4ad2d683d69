package modvault

import (
	"fmt"
	"strings"
)

// ValidationError reports an archive rejected before any byte was written:
// missing file, wrong container extension, unreadable container, or
// disallowed content types found during the pre-scan. Nothing needs cleanup.
type ValidationError struct {
	Reason string
	Files  []string // offending entries, when content validation failed
}

func (e *ValidationError) Error() string {
	if len(e.Files) == 0 {
		return e.Reason
	}
	shown := e.Files
	extra := 0
	if len(shown) > 10 {
		extra = len(shown) - 10
		shown = shown[:10]
	}
	msg := fmt.Sprintf("%s:\n  %s", e.Reason, strings.Join(shown, "\n  "))
	if extra > 0 {
		msg += fmt.Sprintf("\n  ... and %d more", extra)
	}
	return msg
}

// PathTraversalError marks an archive entry whose resolved destination
// escapes the extraction root. Per-entry and non-fatal: the extractor skips
// the entry and continues.
type PathTraversalError struct {
	Entry string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("illegal path traversal in archive entry: %s", e.Entry)
}

// InsufficientSpaceError is returned by the disk-space guard before any
// extraction starts.
type InsufficientSpaceError struct {
	Required uint64
	Free     uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space: %d MB free, %d MB required",
		e.Free/(1024*1024), e.Required/(1024*1024))
}
