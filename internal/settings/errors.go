package settings

import (
	"errors"
	"fmt"
)

// Code identifies why a settings update was rejected.
type Code string

// Validation codes surfaced to API clients.
const (
	CodeInvalidMode        Code = "InvalidMode"
	CodeInvalidTranslation Code = "InvalidTranslation"
	CodeInvalidInterval    Code = "InvalidInterval"
	CodeInvalidFlag        Code = "InvalidFlag"
	CodeInvalidTimeFormat  Code = "InvalidTimeFormat"
)

// Sentinels for errors.Is checks against a *ValidationError.
var (
	ErrInvalidMode        = errors.New("invalid display mode")
	ErrInvalidTranslation = errors.New("invalid translation")
	ErrInvalidInterval    = errors.New("invalid devotional interval")
	ErrInvalidFlag        = errors.New("invalid flag")
	ErrInvalidTimeFormat  = errors.New("invalid time format")
)

var codeSentinels = map[Code]error{
	CodeInvalidMode:        ErrInvalidMode,
	CodeInvalidTranslation: ErrInvalidTranslation,
	CodeInvalidInterval:    ErrInvalidInterval,
	CodeInvalidFlag:        ErrInvalidFlag,
	CodeInvalidTimeFormat:  ErrInvalidTimeFormat,
}

// ValidationError rejects client input. Settings are left unchanged.
type ValidationError struct {
	Code  Code
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	sentinel := codeSentinels[e.Code]
	msg := string(e.Code)
	if sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", msg, e.Field)
	}
	return fmt.Sprintf("%s: %s=%v", msg, e.Field, e.Value)
}

// Is matches the sentinel for the error's code.
func (e *ValidationError) Is(target error) bool {
	return codeSentinels[e.Code] == target
}

func invalid(code Code, field string, value any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Value: value}
}

// PersistenceError reports a failed durable write. The in-memory state was not changed.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist settings: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
