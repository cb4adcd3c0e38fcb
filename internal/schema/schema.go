// Package schema describes the structural shape of structured LLM output.
// A Schema reflects a Go type into JSON Schema (for providers) and validates
// decoded payloads against the same type's validation tags (for callers).
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// Descriptor is the provider-facing view of a schema.
type Descriptor interface {
	// Name returns the schema identifier sent to the provider.
	Name() string

	// JSONSchema returns a fresh copy of the JSON Schema document.
	JSONSchema() map[string]any
}

// Schema binds a Go type to its JSON Schema and validation rules.
type Schema[T any] struct {
	name      string
	document  []byte
	validator *validator.Validate
}

// ValidationError reports fields that failed validation.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Fields, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// New reflects T into a JSON Schema document named name.
func New[T any](name string) (*Schema[T], error) {
	if name == "" {
		return nil, errors.New("schema name cannot be empty")
	}

	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		Anonymous:                 true,
	}

	var zero T
	document, err := json.Marshal(reflector.Reflect(&zero))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema %s: %w", name, err)
	}

	return &Schema[T]{
		name:      name,
		document:  document,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// MustNew is New for package-level schemas; it panics on error.
func MustNew[T any](name string) *Schema[T] {
	s, err := New[T](name)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema identifier.
func (s *Schema[T]) Name() string {
	return s.name
}

// JSONSchema returns a fresh copy of the reflected document, safe to mutate.
func (s *Schema[T]) JSONSchema() map[string]any {
	var out map[string]any
	// The document was produced by json.Marshal, so decoding cannot fail.
	_ = json.Unmarshal(s.document, &out)
	return out
}

// Decode parses data as JSON and validates the result against T's rules.
func (s *Schema[T]) Decode(data []byte) (T, error) {
	var out T

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return out, errors.New("invalid JSON: empty document")
	}

	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := s.validate(out); err != nil {
		return out, err
	}

	return out, nil
}

func (s *Schema[T]) validate(v T) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return &ValidationError{Fields: []string{"document is null"}, Err: nil}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	err := s.validator.Struct(rv.Interface())
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}

	return &ValidationError{Fields: fields, Err: err}
}
