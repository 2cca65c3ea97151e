package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "test_error",
		Message:  "test message",
		Cause:    cause,
	}

	got := err.Error()
	if !strings.Contains(got, "test message") {
		t.Errorf("Error() = %q, should contain 'test message'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Message: "wrapper",
		Cause:   cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestExecutionError_WithCause(t *testing.T) {
	original := ErrNoSuchElement
	cause := errors.New("custom cause")

	newErr := original.WithCause(cause)

	if newErr.Cause != cause {
		t.Error("WithCause() did not set cause")
	}
	if newErr.Code != original.Code {
		t.Error("WithCause() changed code")
	}
	if original.Cause != nil {
		t.Error("WithCause() modified original error")
	}
}

func TestExecutionError_WithMessage(t *testing.T) {
	original := ErrTimeout
	newErr := original.WithMessage("custom timeout message")

	if newErr.Message != "custom timeout message" {
		t.Errorf("Message = %q, want 'custom timeout message'", newErr.Message)
	}
	if newErr.Code != original.Code {
		t.Error("WithMessage() changed code")
	}
	if original.Message == "custom timeout message" {
		t.Error("WithMessage() modified original error")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	original := &ExecutionError{
		Code:    "test",
		Message: "test",
		Details: map[string]interface{}{"existing": "value"},
	}

	newErr := original.WithDetails(map[string]interface{}{
		"selector": "#button",
		"timeout":  5000,
	})

	if newErr.Details["selector"] != "#button" {
		t.Error("WithDetails() did not add new details")
	}
	if newErr.Details["existing"] != "value" {
		t.Error("WithDetails() did not preserve existing details")
	}
	if _, ok := original.Details["selector"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrNoSuchElement, ErrCategoryElement, "no_such_element"},
		{ErrStaleElement, ErrCategoryElement, "stale_element_reference"},
		{ErrNotInteractable, ErrCategoryElement, "element_not_interactable"},
		{ErrClickIntercepted, ErrCategoryElement, "element_click_intercepted"},
		{ErrInvalidSelector, ErrCategoryElement, "invalid_selector"},
		{ErrInvalidElement, ErrCategoryValidation, "invalid_element"},
		{ErrInvalidTagName, ErrCategoryValidation, "invalid_tag_name"},
		{ErrInvalidAttribute, ErrCategoryValidation, "invalid_attribute"},
		{ErrTimeout, ErrCategoryTimeout, "timeout"},
		{ErrWaitTimeout, ErrCategoryTimeout, "wait_timeout"},
		{ErrServerUnreachable, ErrCategoryConnection, "server_unreachable"},
		{ErrSessionNotFound, ErrCategorySession, "invalid_session_id"},
		{ErrPageObjectInit, ErrCategorySession, "page_object_initialization"},
		{ErrIllegalState, ErrCategorySession, "illegal_state"},
		{ErrUnsupported, ErrCategorySession, "unsupported_operation"},
		{ErrScriptFailed, ErrCategoryScript, "javascript_error"},
		{ErrInvalidConfig, ErrCategoryConfig, "invalid_config"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("Category = %s, want %s", tt.err.Category, tt.category)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategoryScript, "custom_error", "custom message")

	if err.Category != ErrCategoryScript {
		t.Errorf("Category = %s, want %s", err.Category, ErrCategoryScript)
	}
	if err.Code != "custom_error" {
		t.Errorf("Code = %s, want 'custom_error'", err.Code)
	}
	if err.Message != "custom message" {
		t.Errorf("Message = %s, want 'custom message'", err.Message)
	}
}

func TestExecutionError_ErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrTimeout.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
}

func TestExecutionError_IsMatchesCopies(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NoSuchElement("Cannot locate %s", "#login"))

	if !errors.Is(err, ErrNoSuchElement) {
		t.Error("errors.Is() should match a copied sentinel by code")
	}
	if errors.Is(err, ErrStaleElement) {
		t.Error("errors.Is() should not match a different code")
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false, want true")
	}
	if got := CategoryOf(err); got != ErrCategoryElement {
		t.Errorf("CategoryOf() = %s, want %s", got, ErrCategoryElement)
	}
}

func TestCategoryOf_PlainError(t *testing.T) {
	if got := CategoryOf(errors.New("boom")); got != ErrCategoryNone {
		t.Errorf("CategoryOf() = %s, want none", got)
	}
}

func TestUnwrap(t *testing.T) {
	inner := &stubElement{}
	outer := &wrappingElement{inner: &wrappingElement{inner: inner}}

	got, err := Unwrap(outer)
	if err != nil {
		t.Fatalf("Unwrap() error = %v", err)
	}
	if got != inner {
		t.Errorf("Unwrap() = %v, want innermost element", got)
	}
}

func TestBounds_Center(t *testing.T) {
	b := Bounds{X: 10, Y: 20, Width: 100, Height: 50}
	x, y := b.Center()
	if x != 60 || y != 45 {
		t.Errorf("Center() = (%d, %d), want (60, 45)", x, y)
	}
	if !b.Contains(10, 20) || b.Contains(110, 20) {
		t.Error("Contains() boundaries are wrong")
	}
}
