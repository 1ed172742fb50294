package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	apperrors "crew-onboarding/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema is the typed declaration of a flat object schema.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        string        `json:"type"`
	Description string        `json:"description,omitempty"`
	Format      string        `json:"format,omitempty"`
	Minimum     *float64      `json:"minimum,omitempty"`
	Maximum     *float64      `json:"maximum,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
	Pattern     string        `json:"pattern,omitempty"`
	MinLength   *int          `json:"minLength,omitempty"`
	MaxLength   *int          `json:"maxLength,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validation error codes.
const (
	CodeRequired    = "REQUIRED_FIELD_MISSING"
	CodeType        = "INVALID_TYPE"
	CodeFormat      = "INVALID_FORMAT"
	CodePattern     = "PATTERN_MISMATCH"
	CodeMinimum     = "MINIMUM_VIOLATION"
	CodeMaximum     = "MAXIMUM_VIOLATION"
	CodeMinLength   = "MIN_LENGTH_VIOLATION"
	CodeMaxLength   = "MAX_LENGTH_VIOLATION"
	CodeEnum        = "INVALID_ENUM_VALUE"
	CodeExtraField  = "EXTRA_FIELD"
	CodeInvalidData = "INVALID_DATA"
)

// Schema is a compiled JSONSchema.
type Schema struct {
	decl     JSONSchema
	compiled *gojsonschema.Schema
}

// Compile builds a gojsonschema validator. Required string properties get minLength 1 so
// that empty strings count as missing.
func Compile(decl JSONSchema) (*Schema, error) {
	if decl.Type == "" {
		decl.Type = "object"
	}
	props := make(map[string]Property, len(decl.Properties))
	for name, p := range decl.Properties {
		props[name] = p
	}
	for _, name := range decl.Required {
		p, ok := props[name]
		if !ok {
			return nil, fmt.Errorf("required field %q has no schema property", name)
		}
		if p.Type == "string" && p.MinLength == nil {
			one := 1
			p.MinLength = &one
			props[name] = p
		}
	}
	decl.Properties = props

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(decl))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{decl: decl, compiled: compiled}, nil
}

// MustCompile panics when the declaration is invalid.
func MustCompile(decl JSONSchema) *Schema {
	s, err := Compile(decl)
	if err != nil {
		panic(err)
	}
	return s
}

// Declaration returns the schema as compiled, including derived constraints.
func (s *Schema) Declaration() JSONSchema {
	return s.decl
}

// PropertyNames returns the declared property names, sorted.
func (s *Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.decl.Properties))
	for name := range s.decl.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate never fails for invalid input; problems are reported as field errors.
func (s *Schema) Validate(data map[string]interface{}) *ValidationResult {
	if data == nil {
		data = map[string]interface{}{}
	}

	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: CodeInvalidData}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, toValidationError(desc))
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &ValidationResult{Valid: false, Errors: errs}
}

func toValidationError(desc gojsonschema.ResultError) ValidationError {
	field := desc.Field()
	details := desc.Details()

	switch desc.Type() {
	case "required":
		if p, ok := details["property"].(string); ok {
			field = p
		}
		return ValidationError{Field: field, Message: "is required", Code: CodeRequired}
	case "additional_property_not_allowed":
		if p, ok := details["property"].(string); ok {
			field = p
		}
		return ValidationError{Field: field, Message: "field not allowed for this step", Code: CodeExtraField}
	case "invalid_type":
		return ValidationError{Field: field, Message: fmt.Sprintf("expected %v", details["expected"]), Code: CodeType}
	case "format":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be a valid %v", details["format"]), Code: CodeFormat}
	case "pattern":
		return ValidationError{Field: field, Message: "has an invalid format", Code: CodePattern}
	case "number_gte", "number_gt":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at least %v", details["min"]), Code: CodeMinimum}
	case "number_lte", "number_lt":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at most %v", details["max"]), Code: CodeMaximum}
	case "string_gte":
		if min, ok := details["min"].(int); ok && min == 1 {
			return ValidationError{Field: field, Message: "is required", Code: CodeRequired}
		}
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at least %v characters", details["min"]), Code: CodeMinLength}
	case "string_lte":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at most %v characters", details["max"]), Code: CodeMaxLength}
	case "enum":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", details["allowed"]), Code: CodeEnum}
	default:
		return ValidationError{Field: field, Message: desc.Description(), Code: CodeInvalidData}
	}
}

// MarshalJSON renders the compiled declaration.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.decl)
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// FieldErrors converts the result into error taxonomy field errors tagged with a step key.
func (vr *ValidationResult) FieldErrors(step string) []apperrors.FieldError {
	out := make([]apperrors.FieldError, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		out = append(out, apperrors.FieldError{Step: step, Field: err.Field, Message: err.Message, Code: err.Code})
	}
	return out
}

// Float returns a pointer for Minimum/Maximum declarations.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer for MinLength/MaxLength declarations.
func Int(v int) *int {
	return &v
}
