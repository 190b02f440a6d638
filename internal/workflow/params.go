package workflow

import (
	"encoding/json"
	"strings"

	"scriptbot/internal/backend"
)

// isJSONShaped reports whether text is meant as a parameter object: after
// trimming it starts with '{' and ends with '}'.
func isJSONShaped(text string) bool {
	t := strings.TrimSpace(text)
	return len(t) >= 2 && strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")
}

// MissingFieldsError lists required fields that were absent or empty, in
// the order name, command, schedule.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required field(s): " + strings.Join(e.Fields, ", ")
}

// ParseError wraps a malformed parameter object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "invalid JSON: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// rawParams accepts any JSON type per field so a number or null shows up as
// "missing" rather than a decode error.
type rawParams struct {
	Name     any `json:"name"`
	Command  any `json:"command"`
	Schedule any `json:"schedule"`
}

// ParseParams decodes a parameter object. Unknown fields are ignored. Every
// required field must be a non-empty string.
func ParseParams(text string) (backend.TaskParams, error) {
	// Unmarshal rejects anything after the object, including a stray '}'
	var raw rawParams
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return backend.TaskParams{}, &ParseError{Err: err}
	}

	var (
		p       backend.TaskParams
		missing []string
	)
	for _, f := range []struct {
		key string
		in  any
		out *string
	}{
		{"name", raw.Name, &p.Name},
		{"command", raw.Command, &p.Command},
		{"schedule", raw.Schedule, &p.Schedule},
	} {
		s, ok := f.in.(string)
		if !ok || strings.TrimSpace(s) == "" {
			missing = append(missing, f.key)
			continue
		}
		*f.out = s
	}
	if len(missing) > 0 {
		return backend.TaskParams{}, &MissingFieldsError{Fields: missing}
	}
	return p, nil
}

// template renders params as the indented JSON users edit.
func template(p backend.TaskParams) string {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
