package model

import "strings"

// Violation is one failed validation rule on one input field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violation found while building a value.
// It is returned before anything is persisted.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Add(field, message string) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: message})
}

func (e *ValidationError) HasViolations() bool { return len(e.Violations) > 0 }

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+" "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
