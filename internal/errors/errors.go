// Package errors defines the pipeline error taxonomy. Every fatal condition
// carries a stable code so that operators can alert on classes of failure
// rather than message strings.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies a fatal pipeline condition.
type Code string

const (
	// CodeSchemaViolation: raw input missing expected fields, or the output
	// column set diverges from the contract.
	CodeSchemaViolation Code = "SCHEMA_VIOLATION"
	// CodeLookupMiss: a product is absent from the category reference.
	CodeLookupMiss Code = "LOOKUP_MISS"
	// CodeGridIntegrity: the expanded grid does not have the expected
	// per-entity row count.
	CodeGridIntegrity Code = "GRID_INTEGRITY"
	// CodeAggregationIntegrity: a roll-up level's sum diverges from its
	// children's sum beyond floating-point tolerance.
	CodeAggregationIntegrity Code = "AGGREGATION_INTEGRITY"
	// CodeSource: the raw source could not be read.
	CodeSource Code = "SOURCE_ERROR"
	// CodeSink: the output artifact could not be written.
	CodeSink Code = "SINK_ERROR"
)

// PipelineError is a fatal error raised by a pipeline stage. Fatal errors
// stop the run before any output is published.
type PipelineError struct {
	Code    Code
	Stage   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Stage, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// New creates a fatal pipeline error for the given stage.
func New(code Code, stage, format string, args ...any) *PipelineError {
	return &PipelineError{
		Code:    code,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap annotates an underlying error with a code and stage.
func Wrap(err error, code Code, stage, format string, args ...any) *PipelineError {
	return &PipelineError{
		Code:    code,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// CodeOf returns the pipeline error code of err, or "" when err is not a
// pipeline error.
func CodeOf(err error) Code {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
