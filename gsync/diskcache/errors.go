package diskcache

import (
	"errors"
	"fmt"
)

// ErrFormat matches every *FormatError via errors.Is.
var ErrFormat = errors.New("disk cache format error")

// FormatError reports a malformed structure inside one cache file.
type FormatError struct {
	File   string
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("disk cache format error at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("disk cache format error in %s at offset %d: %s", e.File, e.Offset, e.Reason)
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func formatErrorf(file string, offset int64, format string, args ...any) error {
	return &FormatError{File: file, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
