package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: no_such_element, wait_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches any ExecutionError with the same code, so copies made by the
// With* helpers still match their sentinel.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithMessagef is WithMessage with formatting
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors (W3C WebDriver error codes where one exists)
var (
	// Element errors
	ErrNoSuchElement = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "no_such_element",
		Message:  "no such element",
	}
	ErrStaleElement = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "stale_element_reference",
		Message:  "stale element reference",
	}
	ErrNotInteractable = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "element_not_interactable",
		Message:  "element not interactable",
	}
	ErrClickIntercepted = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "element_click_intercepted",
		Message:  "other element would receive the click",
	}
	ErrInvalidSelector = &ExecutionError{
		Category: ErrCategoryElement,
		Code:     "invalid_selector",
		Message:  "invalid selector",
	}

	// Validation errors
	ErrInvalidElement = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_element",
		Message:  "invalid element",
	}
	ErrInvalidTagName = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_tag_name",
		Message:  "invalid tag name",
	}
	ErrInvalidAttribute = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_attribute",
		Message:  "invalid attribute",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "timed out waiting for condition",
	}

	// Connection errors
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "webdriver server unreachable",
	}

	// Session and state errors
	ErrSessionNotFound = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "invalid_session_id",
		Message:  "session not found",
	}
	ErrPageObjectInit = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "page_object_initialization",
		Message:  "page object initialization failed",
	}
	ErrIllegalState = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "illegal_state",
		Message:  "illegal state",
	}
	ErrUnsupported = &ExecutionError{
		Category: ErrCategorySession,
		Code:     "unsupported_operation",
		Message:  "unsupported operation",
	}

	// Script errors
	ErrScriptFailed = &ExecutionError{
		Category: ErrCategoryScript,
		Code:     "javascript_error",
		Message:  "script failed",
	}

	// Assertion errors, raised by tests
	ErrAssertion = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "assertion_failed",
		Message:  "assertion failed",
	}

	// Configuration errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
)

// NewExecutionError creates a new ExecutionError
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of the first ExecutionError in err's chain.
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryNone
}

// IsNotFound reports whether err means an element could not be located.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoSuchElement)
}

// IsStale reports whether err means an element left the document.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleElement)
}

// Assertf returns ErrAssertion carrying msg.
func Assertf(format string, args ...interface{}) *ExecutionError {
	return ErrAssertion.WithMessagef(format, args...)
}

// NoSuchElement returns ErrNoSuchElement carrying msg.
func NoSuchElement(format string, args ...interface{}) *ExecutionError {
	return ErrNoSuchElement.WithMessagef(format, args...)
}
