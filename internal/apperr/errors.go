// Package apperr defines the error kinds shared by the store adapters and pipelines.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrTransport         = errors.New("transport error")
	ErrMalformedDocument = errors.New("malformed document")
	ErrGenerationFailure = errors.New("generation failure")
	ErrInvalidInput      = errors.New("invalid input")
)
