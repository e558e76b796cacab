// Package schemas provides JSON Schema validation for outbound notification payloads.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed notification_envelope.schema.json
var envelopeSchema string

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

var (
	envelopeOnce   sync.Once
	envelopeLoaded *gojsonschema.Schema
	envelopeErr    error
)

// EnvelopeSchema returns the notification envelope schema document.
func EnvelopeSchema() string {
	return envelopeSchema
}

// ValidateEnvelope validates an encoded notification envelope. The embedded
// schema is compiled once.
func ValidateEnvelope(payload []byte) error {
	envelopeOnce.Do(func() {
		envelopeLoaded, envelopeErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	})
	if envelopeErr != nil {
		return &SchemaLoadError{
			Path:    "notification_envelope.schema.json",
			Message: "embedded schema is invalid",
			Cause:   envelopeErr,
		}
	}

	result, err := envelopeLoaded.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("failed to load envelope document: %w", err)
	}
	return resultError(result)
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}
	return resultError(result)
}

func resultError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	// Build structured error
	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}

	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}
