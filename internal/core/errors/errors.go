// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Phrase card recognition outcomes.
var (
	// ErrNoWatermark indicates the recognized text does not carry the vendor watermark.
	ErrNoWatermark = errors.New("watermark not found")

	// ErrEmptyText indicates nothing was left after the watermark was stripped.
	ErrEmptyText = errors.New("empty text")

	// ErrNoPhrasePair indicates the text could not be split into two phrases.
	ErrNoPhrasePair = errors.New("no phrase pair")
)

// Image errors.
var (
	// ErrImageTooLarge indicates the image exceeds the configured byte or pixel limit.
	ErrImageTooLarge = errors.New("image too large")

	// ErrUnsupportedImage indicates the image could not be decoded.
	ErrUnsupportedImage = errors.New("unsupported image")
)

// OCR engine errors.
var (
	// ErrEngineUnknown indicates an unsupported OCR engine name.
	ErrEngineUnknown = errors.New("unknown ocr engine")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrRecognitionFailed indicates the engine answered with a per-image error.
	ErrRecognitionFailed = errors.New("recognition failed")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrJournalDisabled indicates no card journal is configured.
	ErrJournalDisabled = errors.New("journal disabled")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
