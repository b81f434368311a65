// Package commands contains CLI command implementations for the vault.
package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// readPassword returns the password to store. A non-empty flag value wins;
// otherwise the user is prompted for one line on the reader.
//
// The returned buffer is owned by the caller, which hands it to the vault for
// zeroization.
func readPassword(flagValue string, in io.Reader, out io.Writer) ([]byte, error) {
	if flagValue != "" {
		return []byte(flagValue), nil
	}

	_, _ = fmt.Fprint(out, "Password: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		return nil, fmt.Errorf("no password provided")
	}
	return []byte(strings.TrimRight(scanner.Text(), "\r\n")), nil
}
