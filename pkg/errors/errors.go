// Package errors provides structured errors with codes and contextual fields
// for the optimizer and its adapters.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies the failures this system can surface.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	InvalidInput
	ValidationFailed
	Canceled
	RateLimitExceeded

	// Adapter errors.
	LLMGenerationFailed
	InvalidResponse
)

// Error is a coded error with an optional wrapped cause and structured fields.
type Error struct {
	code     ErrorCode
	message  string
	original error
	fields   Fields
}

// Fields carries structured context about the error.
type Fields map[string]interface{}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.message)

	if e.original != nil {
		b.WriteString(": ")
		b.WriteString(e.original.Error())
	}

	if len(e.fields) > 0 {
		keys := make([]string, 0, len(e.fields))
		for k := range e.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%v ", k, e.fields[k])
		}
		b.WriteString("]")
	}

	return strings.TrimSpace(b.String())
}

func (e *Error) Unwrap() error {
	return e.original
}

func (e *Error) Code() ErrorCode {
	return e.code
}

// New creates a new error with a code and message.
func New(code ErrorCode, message string) error {
	return &Error{code: code, message: message}
}

// Wrap wraps an existing error with a code and message. Wrapping nil returns
// nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, message: message, original: err}
}

// WithFields attaches structured context to an error, merging with any fields
// already present.
func WithFields(err error, fields Fields) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		merged := make(Fields, len(e.fields)+len(fields))
		for k, v := range e.fields {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		return &Error{code: e.code, message: e.message, original: e.original, fields: merged}
	}
	return &Error{code: Unknown, message: err.Error(), original: err, fields: fields}
}

// CodeOf returns the code of err if it is an *Error, else Unknown.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.code
	}
	return Unknown
}
