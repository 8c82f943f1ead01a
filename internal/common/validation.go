package common

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %q)", e.Field, e.Message, fmt.Sprint(e.Value))
}

// Validator collects field errors for a single request.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs every rule against value and keeps all failures.
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error wraps ErrValidation, or returns nil when every field passed.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

type ValidationRule func(fieldName string, value interface{}) *ValidationError

func invalid(fieldName string, value interface{}, msg string) *ValidationError {
	return &ValidationError{Field: fieldName, Value: value, Message: msg}
}

func asString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v != nil {
			return *v, true
		}
	}
	return "", false
}

func Required(fieldName string, value interface{}) *ValidationError {
	if s, ok := asString(value); !ok || strings.TrimSpace(s) == "" {
		return invalid(fieldName, value, "is required")
	}
	return nil
}

func MaxLength(fieldName string, value interface{}, max int) *ValidationError {
	s, ok := asString(value)
	if ok && utf8.RuneCountInString(s) > max {
		return invalid(fieldName, value, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

// MaxLen adapts MaxLength to a ValidationRule.
func MaxLen(max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		return MaxLength(fieldName, value, max)
	}
}

func UUID(fieldName string, value interface{}) *ValidationError {
	s, _ := asString(value)
	if _, err := uuid.Parse(s); err != nil {
		return invalid(fieldName, value, "must be a valid UUID")
	}
	return nil
}

func Email(fieldName string, value interface{}) *ValidationError {
	s, _ := asString(value)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return invalid(fieldName, value, "must be a valid email address")
	}
	return nil
}

// FileName accepts a bare upload name: no directories, no control characters.
// Empty names pass; combine with Required when the name is mandatory.
func FileName(fieldName string, value interface{}) *ValidationError {
	s, _ := asString(value)
	if s == "" {
		return nil
	}
	if strings.ContainsAny(s, `/\`) || s == "." || s == ".." || path.Base(s) != s {
		return invalid(fieldName, value, "must not contain a directory")
	}
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return invalid(fieldName, value, "must not contain control characters")
	}
	return nil
}

// ValidateAndReturnError turns collected failures into an InvalidArgument status.
func ValidateAndReturnError(validator *Validator) error {
	if validator.HasErrors() {
		return InvalidArgumentError(validator.ErrorMessage())
	}
	return nil
}
