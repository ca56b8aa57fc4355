package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every fatal pipeline error matches exactly one of these
// through errors.Is.
var (
	ErrExtraction     = errors.New("extraction failed")
	ErrTransformation = errors.New("transformation failed")
	ErrExport         = errors.New("export failed")
)

// Causes carried inside the typed errors below.
var (
	ErrRowCountOutOfBounds = errors.New("row count out of bounds")
	ErrMissingColumn       = errors.New("missing required column")
	ErrEmptyInput          = errors.New("empty file")
	ErrWarehouseLoad       = errors.New("warehouse load failed")
	ErrRunInProgress       = errors.New("pipeline run already in progress")
	ErrNoRunYet            = errors.New("no pipeline run has finished yet")
)

// ExtractionError reports an input that could not be read within its
// contract: missing file, missing header column, or a row count outside
// the configured bounds.
type ExtractionError struct {
	Input string // input key, e.g. "maintenance_raw"
	Path  string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.Input, e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// TransformationError reports a cell that could not be coerced to its
// required type. Row is the 1-based line number in the source file.
type TransformationError struct {
	Table  string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transform %s line %d column %s: %v", e.Table, e.Row, e.Column, e.Err)
}

func (e *TransformationError) Unwrap() []error { return []error{ErrTransformation, e.Err} }

// ExportError reports an artifact that could not be written, or a
// warehouse load that failed.
type ExportError struct {
	Table  string
	Path   string
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("export %s as %s: %v", e.Table, e.Format, e.Err)
	}
	return fmt.Sprintf("export %s as %s to %s: %v", e.Table, e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() []error { return []error{ErrExport, e.Err} }
