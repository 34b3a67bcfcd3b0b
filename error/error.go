// Package error defines the error kinds surfaced by the mirroring engine.
package error

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrConfig indicates an invalid or incomplete invocation configuration.
	ErrConfig = errors.New("invalid configuration")

	// ErrResolve indicates a channel reference that cannot be turned into a
	// base URL.
	ErrResolve = errors.New("cannot resolve channel reference")

	// ErrUnsupportedScheme indicates a destination scheme that is neither
	// "file" nor "s3".
	ErrUnsupportedScheme = errors.New("unsupported destination scheme")
)

// Error is the mirror error type with operation context attached. Subdir,
// Filename and URL are filled in as far as they are known at the failure
// site.
type Error struct {
	// Op is the failing operation, e.g. "fetch", "put", "delete".
	Op string

	// Subdir is the platform subdirectory being mirrored.
	Subdir string

	// Filename is the package archive in flight, if any.
	Filename string

	// URL is the remote address involved, if any. Never a presigned URL.
	URL string

	// Err is the original error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Filename != "" && e.URL != "":
		return fmt.Sprintf("%s %s/%s (%s): %v", e.Op, e.Subdir, e.Filename, e.URL, e.Err)
	case e.Filename != "":
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Subdir, e.Filename, e.Err)
	case e.Subdir != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Subdir, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the original error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IntegrityError states that fetched bytes do not match the digest declared
// in the source manifest.
type IntegrityError struct {
	Filename string
	Want     string
	Got      string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("sha256 of %q does not match: expected %s, got %s", e.Filename, e.Want, e.Got)
}

// ParseError states that a source manifest did not parse. Offset is the byte
// offset of the failure when the decoder reports one, -1 otherwise.
type ParseError struct {
	URL    string
	Offset int64
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("parse repodata %s at byte %d: %v", e.URL, e.Offset, e.Err)
	}
	return fmt.Sprintf("parse repodata %s: %v", e.URL, e.Err)
}

// Unwrap returns the original error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsCancelation reports whether given error is the result of a context
// cancelation. Cancelation errors are swallowed when a sibling failure
// triggered them; only the original error is surfaced.
func IsCancelation(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return true
	}

	merr, ok := err.(*multierror.Error)
	if !ok {
		return false
	}

	for _, err := range merr.Errors {
		if IsCancelation(err) {
			return true
		}
	}

	return false
}
