package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the presentation layer can show a specific message.
type ErrorKind string

const (
	KindTranslation       ErrorKind = "TranslationError"
	KindExecution         ErrorKind = "ExecutionError"
	KindShape             ErrorKind = "ShapeError"
	KindIncompatibleChart ErrorKind = "IncompatibleChartError"
	KindPersistence       ErrorKind = "PersistenceError"
)

// Error is the structured error every component surfaces to the orchestrator.
type Error struct {
	Kind    ErrorKind
	Message string // human-readable cause
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func TranslationError(err error, format string, args ...any) *Error {
	return NewError(KindTranslation, err, format, args...)
}

func ExecutionError(err error, format string, args ...any) *Error {
	return NewError(KindExecution, err, format, args...)
}

func ShapeError(format string, args ...any) *Error {
	return NewError(KindShape, nil, format, args...)
}

func IncompatibleChartError(format string, args ...any) *Error {
	return NewError(KindIncompatibleChart, nil, format, args...)
}

func PersistenceError(err error, format string, args ...any) *Error {
	return NewError(KindPersistence, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
