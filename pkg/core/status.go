package core

// Status represents the outcome of running a test
type Status int

const (
	StatusPending Status = iota // Not yet started
	StatusRunning               // Currently executing
	StatusPassed                // Completed successfully
	StatusFailed                // An element or validation check failed
	StatusErrored               // Unexpected error (session, timeout, panic)
	StatusSkipped               // Never ran, for example after cancellation
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsSuccess returns true if the status indicates success
func (s Status) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryElement                         // Element missing, stale or not interactable
	ErrCategoryValidation                      // Element is not what the caller expected
	ErrCategoryTimeout                         // A wait ran out of time
	ErrCategoryConnection                      // WebDriver server unreachable
	ErrCategorySession                         // Session missing or in an illegal state
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryScript                          // Browser-side script failed
	ErrCategoryAssertion                       // A test check did not hold
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryElement:
		return "element"
	case ErrCategoryValidation:
		return "validation"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryScript:
		return "script"
	case ErrCategoryAssertion:
		return "assertion"
	default:
		return "unknown"
	}
}

// StatusFor maps an error to the test status it should produce.
func StatusFor(err error) Status {
	if err == nil {
		return StatusPassed
	}
	switch CategoryOf(err) {
	case ErrCategoryElement, ErrCategoryValidation, ErrCategoryAssertion:
		return StatusFailed
	default:
		return StatusErrored
	}
}
