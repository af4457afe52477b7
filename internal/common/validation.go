package common

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError describes one field that failed a rule.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s=%q %s", e.Field, fmt.Sprint(e.Value), e.Message)
}

// ValidationRule checks value and returns nil when it passes.
type ValidationRule func(field string, value any) *ValidationError

// Validator accumulates rule failures across fields so callers can report
// every problem at once.
type Validator struct {
	failures []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field applies rules to value in order. All failing rules are recorded.
func (v *Validator) Field(field string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if failure := rule(field, value); failure != nil {
			v.failures = append(v.failures, *failure)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.failures) > 0 }

func (v *Validator) Errors() []ValidationError { return v.failures }

// ErrorMessage joins every failure with "; ", or returns "" when there are none.
func (v *Validator) ErrorMessage() string {
	parts := make([]string, len(v.failures))
	for i, f := range v.failures {
		parts[i] = f.Error()
	}
	return strings.Join(parts, "; ")
}

// Required rejects nil and blank strings.
func Required(field string, value any) *ValidationError {
	blank := value == nil
	switch s := value.(type) {
	case string:
		blank = strings.TrimSpace(s) == ""
	case *string:
		blank = s == nil || strings.TrimSpace(*s) == ""
	}
	if blank {
		return &ValidationError{Field: field, Value: value, Message: "is required"}
	}
	return nil
}

// OneOf accepts a string equal to one of the allowed values.
func OneOf(allowed ...string) ValidationRule {
	return func(field string, value any) *ValidationError {
		if s, ok := value.(string); ok {
			for _, a := range allowed {
				if s == a {
					return nil
				}
			}
		}
		return &ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be one of " + strings.Join(allowed, ", "),
		}
	}
}

var isoCurrency = regexp.MustCompile(`^[A-Z]{3}$`)

// CurrencyCode accepts an ISO 4217 alphabetic code.
func CurrencyCode(field string, value any) *ValidationError {
	if s, ok := value.(string); ok && isoCurrency.MatchString(s) {
		return nil
	}
	return &ValidationError{Field: field, Value: value, Message: "must be a three-letter ISO 4217 code"}
}
