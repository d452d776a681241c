package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PreflightError is a user-facing error with a hint and an example command.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString("\nHint: ")
		b.WriteString(e.Hint)
	}
	if e.NextStep != "" {
		b.WriteString("\nTry: ")
		b.WriteString(e.NextStep)
	}
	return b.String()
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// readPassword prompts for a password without echo.
func readPassword(prompt string) (string, error) {
	if IsNonInteractive() {
		return "", &PreflightError{
			Message:  "password required",
			Hint:     "pass --password or run in an interactive terminal",
			NextStep: "leasedesk user create --email ann@example.com --password ...",
		}
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
