package sparsefp

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned by a run that stopped because the shutdown channel closed
var ErrInterrupted = errors.New("run interrupted by shutdown")

// FileReadError reports a failed open, size, seek or read on one file.
// Offset is the last byte position the engine attempted (0 before sampling starts).
type FileReadError struct {
	Path   string
	Offset int64
	Op     string // open, prime, size, sample
	Err    error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("error reading %s at position %d: %s: %v", e.Path, e.Offset, e.Op, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

// newFileReadError wraps err unless it already is a FileReadError
func newFileReadError(path string, offset int64, op string, err error) error {
	var fre *FileReadError
	if errors.As(err, &fre) {
		return err
	}
	return &FileReadError{Path: path, Offset: offset, Op: op, Err: err}
}

// ConfigurationError reports an invalid option value detected at startup
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Value, e.Reason)
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
