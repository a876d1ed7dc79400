package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrSchemaUnrecognized  = fmt.Errorf("metadata schema not recognized: %w", ErrUnsupported)
	ErrParseFailure        = fmt.Errorf("metadata parse: %w", ErrInvalidInput)
	ErrDocumentUnavailable = fmt.Errorf("metadata document: %w", ErrUnavailable)
	ErrMissingSidecar      = fmt.Errorf("sidecar: %w", ErrNotFound)
	ErrInvalidSidecar      = fmt.Errorf("sidecar: %w", ErrInvalidInput)
	ErrGeopositionMissing  = fmt.Errorf("geoposition: %w", ErrNotFound)
	ErrGeoreferenceWrite   = fmt.Errorf("georeference write: %w", ErrInternal)
	ErrUnknownProfile      = fmt.Errorf("resolution profile: %w", ErrNotFound)
	ErrUnknownBand         = fmt.Errorf("band: %w", ErrNotFound)
	ErrTileNotFound        = fmt.Errorf("tile: %w", ErrNotFound)
	ErrPlanNotFound        = fmt.Errorf("build plan: %w", ErrNotFound)
	ErrStorageUnavailable  = fmt.Errorf("storage: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ParseError is returned when a metadata document is not well-formed XML.
type ParseError struct {
	Path string // Metadata file path
	Line int    // Line number (0 if unknown)
	Err  error  // Underlying decoder error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parsing %s (line %d): %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrParseFailure and the decoder error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParseFailure, e.Err}
}

// SidecarError represents a failure to open or decode tileInfo.json.
type SidecarError struct {
	Path string // Sidecar file path
	Kind error  // ErrMissingSidecar or ErrInvalidSidecar
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *SidecarError) Error() string {
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Path, e.Err)
}

// Unwrap returns the kind and the underlying error.
func (e *SidecarError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// GeoreferenceWriteError is returned when a world file cannot be written.
type GeoreferenceWriteError struct {
	BandPath string // Band image the world file belongs to
	Err      error  // Underlying error
}

// Error implements the error interface.
func (e *GeoreferenceWriteError) Error() string {
	return fmt.Sprintf("writing world file for %s: %v", e.BandPath, e.Err)
}

// Unwrap returns ErrGeoreferenceWrite and the underlying error.
func (e *GeoreferenceWriteError) Unwrap() []error {
	return []error{ErrGeoreferenceWrite, e.Err}
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
