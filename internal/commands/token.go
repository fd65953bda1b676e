package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var errNoToken = errors.New("no access token: pass --token, set ACCESS_TOKEN or run in a terminal")

// resolveToken prefers the flag, then $ACCESS_TOKEN, then a hidden prompt.
func resolveToken(flag string) (string, error) {
	if t := strings.TrimSpace(flag); t != "" {
		return t, nil
	}
	if t := strings.TrimSpace(os.Getenv("ACCESS_TOKEN")); t != "" {
		return t, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoToken
	}

	fmt.Fprint(os.Stderr, "Access token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if t := strings.TrimSpace(string(raw)); t != "" {
		return t, nil
	}
	return "", errNoToken
}
