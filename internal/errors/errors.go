package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the corpus integrity engine
type ErrorType string

const (
	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeIO           ErrorType = "io"

	// Corpus errors
	ErrorTypeRoot      ErrorType = "root"
	ErrorTypeCollision ErrorType = "collision"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// ErrTargetExists is the underlying error of a collision: the rename or
// create target is already occupied.
var ErrTargetExists = stderrors.New("target already exists")

// FileError represents a failure on a single file. It never aborts a batch.
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error, classifying the underlying cause
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Type:       classify(err),
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewCollisionError reports that path could not be moved because target is occupied
func NewCollisionError(op, path, target string) *FileError {
	return &FileError{
		Type:       ErrorTypeCollision,
		Path:       path,
		Operation:  op,
		Underlying: fmt.Errorf("%w: %s", ErrTargetExists, target),
		Timestamp:  time.Now(),
	}
}

func classify(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypeInternal
	case stderrors.Is(err, fs.ErrNotExist):
		return ErrorTypeFileNotFound
	case stderrors.Is(err, fs.ErrPermission):
		return ErrorTypePermission
	case stderrors.Is(err, ErrTargetExists), stderrors.Is(err, fs.ErrExist):
		return ErrorTypeCollision
	default:
		return ErrorTypeIO
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// RootError is fatal for a call: the corpus root is missing or not a directory.
type RootError struct {
	Root       string
	Underlying error
	Timestamp  time.Time
}

// NewRootError creates a new root error
func NewRootError(root string, err error) *RootError {
	return &RootError{
		Root:       root,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *RootError) Error() string {
	return fmt.Sprintf("invalid corpus root %s: %v", e.Root, e.Underlying)
}

// Unwrap returns the underlying error
func (e *RootError) Unwrap() error {
	return e.Underlying
}

// IsRootError reports whether err (or anything it wraps) is a RootError
func IsRootError(err error) bool {
	var re *RootError
	return stderrors.As(err, &re)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Add appends a non-nil error
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// Len returns the number of collected errors
func (e *MultiError) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Errors)
}

// ErrorOrNil returns nil when nothing was collected
func (e *MultiError) ErrorOrNil() error {
	if e.Len() == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// FileErrors extracts every FileError reachable from err
func FileErrors(err error) []*FileError {
	if me, ok := err.(*MultiError); ok {
		var out []*FileError
		for _, e := range me.Errors {
			out = append(out, FileErrors(e)...)
		}
		return out
	}
	var fe *FileError
	if stderrors.As(err, &fe) {
		return []*FileError{fe}
	}
	return nil
}
