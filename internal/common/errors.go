package common

import (
	"errors"
	"fmt"
)

// Error codes for the pipeline error taxonomy.
const (
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeMissingInput  = "MISSING_INPUT"
	CodeRulePattern   = "RULE_PATTERN_ERROR"
	CodeExternalCall  = "EXTERNAL_CALL_ERROR"
	CodeIO            = "IO_ERROR"
)

// Sentinels matched by errors.Is against an *AppError of the same code.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrMissingInput  = errors.New("missing input")
	ErrRulePattern   = errors.New("rule pattern error")
	ErrExternalCall  = errors.New("external call failed")
	ErrIO            = errors.New("io error")
)

var sentinelByCode = map[string]error{
	CodeConfiguration: ErrConfiguration,
	CodeMissingInput:  ErrMissingInput,
	CodeRulePattern:   ErrRulePattern,
	CodeExternalCall:  ErrExternalCall,
	CodeIO:            ErrIO,
}

// AppError represents application-specific errors.
// Error() is the message itself so it can be surfaced to users verbatim.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrMissingInput) match on the code.
func (e *AppError) Is(target error) bool {
	s, ok := sentinelByCode[e.Code]
	return ok && s == target
}

// NewAppError builds an AppError with an explicit message.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ConfigurationErrorf(format string, args ...any) error {
	return newf(CodeConfiguration, format, args...)
}

func MissingInputErrorf(format string, args ...any) error {
	return newf(CodeMissingInput, format, args...)
}

func RulePatternErrorf(format string, args ...any) error {
	return newf(CodeRulePattern, format, args...)
}

func ExternalCallErrorf(format string, args ...any) error {
	return newf(CodeExternalCall, format, args...)
}

func IOErrorf(format string, args ...any) error {
	return newf(CodeIO, format, args...)
}

// newf keeps the first wrapped error (if any) as the cause.
func newf(code, format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	return &AppError{Code: code, Message: wrapped.Error(), Cause: errors.Unwrap(wrapped)}
}

// CodeOf returns the AppError code found in err's chain, or "" if none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
