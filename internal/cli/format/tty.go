package format

import (
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether stdout is a color-capable terminal. NO_COLOR and a
// dumb or missing TERM disable it.
func IsTTY() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	termEnv := os.Getenv("TERM")
	if termEnv == "dumb" || termEnv == "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
