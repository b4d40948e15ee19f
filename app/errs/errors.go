package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRunInProgress = errors.New("a run for this source is already in progress")
	ErrNotFound      = errors.New("not found")
)

// ConfigurationError reports a problem that no retry can fix: an unknown
// source, a missing prompt template or a missing API key.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func Configuration(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ExtractionError is returned once the LLM client has exhausted its attempts.
type ExtractionError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("llm extraction failed (provider %s, %d attempts): %v", e.Provider, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ParseError describes one rejected candidate. Index is -1 when the whole
// payload could not be read.
type ParseError struct {
	Index  int
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Index < 0 {
		b.WriteString("response")
	} else {
		fmt.Fprintf(&b, "event %d", e.Index)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value %q", e.Value)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
