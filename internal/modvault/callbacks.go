package modvault

// PasswordReason tells a PasswordProvider why it is being asked.
type PasswordReason int

const (
	// PasswordFirst is the initial prompt for an encrypted archive.
	PasswordFirst PasswordReason = iota
	// PasswordIncorrect is a re-prompt after a failed decryption attempt.
	PasswordIncorrect
)

func (r PasswordReason) String() string {
	if r == PasswordIncorrect {
		return "incorrect"
	}
	return "none"
}

// ProgressReporter receives throttled progress updates during an import.
// Report is invoked from the importing goroutine, not a UI thread.
// Implementations must not panic; a panic is recovered and swallowed at the
// call site so a broken front end cannot abort an in-flight extraction.
type ProgressReporter interface {
	Report(percent int, message string)
}

// ProgressFunc adapts a plain function to ProgressReporter.
type ProgressFunc func(percent int, message string)

func (f ProgressFunc) Report(percent int, message string) { f(percent, message) }

// PasswordProvider supplies the password for an encrypted archive. It is
// invoked synchronously from the importing goroutine and may block
// indefinitely awaiting a human. Returning ok=false cancels the import
// cleanly (ErrPasswordCancelled, full cleanup, no partial content).
type PasswordProvider interface {
	RequestPassword(archiveName string, reason PasswordReason) (password string, ok bool)
}

// PasswordFunc adapts a plain function to PasswordProvider.
type PasswordFunc func(archiveName string, reason PasswordReason) (string, bool)

func (f PasswordFunc) RequestPassword(archiveName string, reason PasswordReason) (string, bool) {
	return f(archiveName, reason)
}

// reportProgress calls the reporter, swallowing any panic it raises.
func reportProgress(p ProgressReporter, percent int, message string) {
	if p == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			debugf("progress reporter panicked: %v\n", r)
		}
	}()
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	p.Report(percent, message)
}
