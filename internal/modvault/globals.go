package modvault

import (
	"errors"

	"github.com/gookit/color"
)

// Global variables
var (
	destRoot     string
	Debug        bool
	WantDebug    string
	ConfigFile   = "/etc/modvault.conf"
	version      = "dev"     // overridden at build time
	buildDate    = "unknown" // overridden at build time
	manifestName = ".manifest.json"
	lockFileName = ".modvault.lock"

	// Extensions permitted inside a package archive. The content domain is
	// format-sensitive: only texture and config asset types belong in a
	// package, anything else rejects the whole archive before extraction.
	allowedExtensions = map[string]bool{
		".dds": true,
		".blk": true,
		".tga": true,
	}

	// Archive-metadata folders and OS marker files ignored everywhere:
	// never extracted, never counted, never considered during flattening.
	noiseNames = map[string]bool{
		"__MACOSX":    true,
		"desktop.ini": true,
		".DS_Store":   true,
		"Thumbs.db":   true,
	}

	ErrAlreadyExists     = errors.New("package directory already exists")
	ErrPasswordCancelled = errors.New("archive password prompt cancelled")
)

// color helpers
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
