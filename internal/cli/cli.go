// Package cli holds what the command line tools share: logging setup and
// opening documents with an interactive password prompt.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/NityaNandPandey/AndroidPDF/observability"
	"github.com/NityaNandPandey/AndroidPDF/pdf"
	"github.com/NityaNandPandey/AndroidPDF/security"
)

// ErrNoPassword is returned for encrypted documents when no password was
// given and stdin is not a terminal.
var ErrNoPassword = errors.New("document is encrypted and no password was given")

// NewLogger returns a logrus backed logger writing to stderr.
func NewLogger(verbose bool) observability.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return observability.NewLogrus(l)
}

// Prompter reads a password for the named file.
type Prompter func(name string) (string, error)

// TerminalPrompt asks on stderr and reads from stdin without echo.
func TerminalPrompt(name string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoPassword
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", name)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

const attempts = 3

// Open opens the document at path. When it stays locked with password,
// prompt is asked up to three times; a nil prompt fails immediately.
func Open(path, password string, prompt Prompter, log observability.Logger) (*pdf.Doc, error) {
	doc, err := pdf.Open(path, pdf.OpenOptions{Password: password, Logger: log})
	locked := errors.Is(err, pdf.ErrPasswordRequired) || errors.Is(err, pdf.ErrInvalidPassword)
	if err != nil && !(locked && doc != nil) {
		if doc != nil {
			doc.Close()
		}
		return nil, err
	}
	for i := 0; doc.SecurityState() == security.Locked; i++ {
		if prompt == nil || i == attempts {
			doc.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrNoPassword)
		}
		pw, err := prompt(path)
		if err == nil {
			err = doc.InitStdSecurityHandler(pw)
		}
		if errors.Is(err, ErrNoPassword) || errors.Is(err, io.EOF) {
			doc.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err != nil {
			observability.OrNop(log).Warn("password rejected", observability.String("file", path), observability.Err(err))
		}
	}
	return doc, nil
}
