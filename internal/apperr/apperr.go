// Package apperr defines the error taxonomy for external calls made on behalf of the user.
package apperr

import "fmt"

// Kind classifies where an error came from.
type Kind int

const (
	KindPick Kind = iota
	KindExport
	KindFetch
	KindConfig
)

// String returns a string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindPick:
		return "pick"
	case KindExport:
		return "export"
	case KindFetch:
		return "fetch"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error is a structured failure of an external operation.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Pick wraps a file-pick failure.
func Pick(op, path string, err error) *Error {
	return &Error{Kind: KindPick, Op: op, Path: path, Err: err}
}

// Export wraps an archive-export failure.
func Export(op, path string, err error) *Error {
	return &Error{Kind: KindExport, Op: op, Path: path, Err: err}
}

// Fetch wraps a text-fetch failure.
func Fetch(op, path string, err error) *Error {
	return &Error{Kind: KindFetch, Op: op, Path: path, Err: err}
}

// Config wraps a configuration failure.
func Config(op, path string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Path: path, Err: err}
}
