// Package validator checks that an element is what a widget expects before
// basil acts on it, such as an <input type="checkbox"> before checking it.
package validator

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/basil/pkg/config"
	"github.com/devicelab-dev/basil/pkg/core"
	"github.com/devicelab-dev/basil/pkg/logger"
)

// Rule is one check on an element. Type names the rule so it can be ignored
// through configuration.
type Rule interface {
	Type() string
	Validate(el core.WebElement) error
}

// ValidationError wraps a rule failure with the element it was found on.
type ValidationError struct {
	Element string
	Rule    string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Element, e.Rule, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Result contains the outcome of every rule that ran.
type Result struct {
	// Checked lists the rule types in the order they ran.
	Checked []string
	// Skipped lists rule types ignored through configuration.
	Skipped []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Err returns the first error, or nil.
func (r *Result) Err() error {
	if r.IsValid() {
		return nil
	}
	return r.Errors[0]
}

// Validator runs rules with the webElement.validation settings.
type Validator struct {
	exception bool
	ignored   map[string]bool
}

// New creates a Validator. When exception is false, failures are logged and
// Validate returns nil.
func New(exception bool, ignoredTypes ...string) *Validator {
	v := &Validator{exception: exception, ignored: make(map[string]bool)}
	for _, t := range ignoredTypes {
		v.ignored[strings.TrimSpace(t)] = true
	}
	return v
}

// FromConfig creates a Validator from the webElement section.
func FromConfig(cfg config.WebElementConfig) *Validator {
	return New(cfg.ValidationException, cfg.IgnoredValidationTypes...)
}

// Check runs every rule and collects the results.
func (v *Validator) Check(el core.WebElement, rules ...Rule) *Result {
	result := &Result{}
	for _, r := range rules {
		if v.ignored[r.Type()] {
			result.Skipped = append(result.Skipped, r.Type())
			continue
		}
		result.Checked = append(result.Checked, r.Type())
		if err := r.Validate(el); err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				Element: fmt.Sprint(el),
				Rule:    r.Type(),
				Err:     err,
			})
		}
	}
	return result
}

// Validate stops at the first failing rule. Failures are returned only when
// validation exceptions are enabled.
func (v *Validator) Validate(el core.WebElement, rules ...Rule) error {
	for _, r := range rules {
		if v.ignored[r.Type()] {
			continue
		}
		if err := r.Validate(el); err != nil {
			if !v.exception {
				logger.Warn("validation %s failed on %v: %v", r.Type(), el, err)
				return nil
			}
			return err
		}
	}
	return nil
}
