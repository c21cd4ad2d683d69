package modvault

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"
)

// interactiveMu serializes prompts so concurrent output cannot interleave
// with user input.
var interactiveMu sync.Mutex

// askForConfirmation prints a [Y/n] prompt and reads the answer. Empty input
// means yes; a read error (like Ctrl+D) means no.
func askForConfirmation(p colorPrinter, format string, a ...any) bool {
	interactiveMu.Lock()
	defer interactiveMu.Unlock()

	reader := bufio.NewReader(os.Stdin)
	fullPrompt := fmt.Sprintf("%s [Y/n]: ", fmt.Sprintf(format, a...))

	for {
		cPrintf(p, "%s", fullPrompt)
		response, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(response)) {
		case "", "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

// terminalPasswordProvider prompts for archive passwords on the controlling
// terminal without echoing. Returning ok=false cancels the import.
type terminalPasswordProvider struct{}

func (terminalPasswordProvider) RequestPassword(archiveName string, reason PasswordReason) (string, bool) {
	interactiveMu.Lock()
	defer interactiveMu.Unlock()

	if reason == PasswordIncorrect {
		colWarn.Println("Incorrect password.")
	}
	cPrintf(colArrow, "Password for %s (empty to cancel): ", archiveName)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		// Not a terminal or read failed; fall back to a plain line read.
		reader := bufio.NewReader(os.Stdin)
		line, rerr := reader.ReadString('\n')
		if rerr != nil {
			return "", false
		}
		pass := strings.TrimRight(line, "\r\n")
		return pass, pass != ""
	}
	pass := string(bytePassword)
	return pass, pass != ""
}
