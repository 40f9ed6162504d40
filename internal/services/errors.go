package services

import (
	"errors"
	"fmt"
)

// ValidationReason classifies why an upload was rejected
type ValidationReason string

const (
	ReasonMissingFile       ValidationReason = "missing_file"
	ReasonTooLarge          ValidationReason = "too_large"
	ReasonUnsupportedFormat ValidationReason = "unsupported_format"
)

// ValidationError is returned when an upload fails pre-flight checks
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// QuotaExceededError is returned when a user has used up the free limit
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("free limit reached (%d conversions)", e.Limit)
}

// ErrRecognizerUnavailable indicates the text-recognition backend failed.
// Recognition failures are not retried; the caller must resubmit.
var ErrRecognizerUnavailable = errors.New("text recognition unavailable")

// ConverterReason classifies external converter failures
type ConverterReason string

const (
	ConverterTimeout     ConverterReason = "timeout"
	ConverterNonZeroExit ConverterReason = "non_zero_exit"
	ConverterNoOutput    ConverterReason = "no_output_produced"
	ConverterBadOutput   ConverterReason = "unreadable_output"
)

// ConverterError is returned when the external office converter fails.
// Output holds the process's captured stdout/stderr for diagnostics.
type ConverterError struct {
	Reason ConverterReason
	Output string
	Err    error
}

func (e *ConverterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("office converter %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("office converter %s", e.Reason)
}

func (e *ConverterError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedImage is returned when the assembler cannot decode the
// source image as PNG or JPEG.
var ErrUnsupportedImage = errors.New("unsupported image format")
