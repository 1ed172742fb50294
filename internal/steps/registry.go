// Package steps holds the canonical, ordered wizard step registry: which steps exist, when
// each one is required and how its data is validated.
package steps

import (
	"fmt"
	"sort"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/validation"
	"crew-onboarding/internal/models"
)

// Spec declares one step. The registry compiles it into a Definition.
type Spec struct {
	Key      string
	Title    string
	Payload  Payload
	Schema   validation.JSONSchema
	Required func(sub *models.OnboardingSubmission) bool
}

// Definition is a compiled, read-only step. Index is 1-based and only meaningful in the
// list returned by StepsFor, where it reflects the step's position for that submission.
type Definition struct {
	Index          int
	Key            string
	Title          string
	Fields         []string
	RequiredFields []string

	required func(sub *models.OnboardingSubmission) bool
	schema   *validation.Schema
}

// Required reports whether the step applies to sub.
func (d Definition) Required(sub *models.OnboardingSubmission) bool {
	if d.required == nil {
		return true
	}
	return d.required(sub)
}

func (d Definition) Validate(data models.StepData) *validation.ValidationResult {
	return d.schema.Validate(data)
}

func (d Definition) Schema() validation.JSONSchema {
	return d.schema.Declaration()
}

// Registry is the ordered set of steps. It is immutable after construction.
type Registry struct {
	defs  []Definition
	byKey map[string]int
}

// NewRegistry compiles specs in the given order. It rejects duplicate keys, payload fields
// missing from the schema, schema properties missing from the payload, and required fields
// without a schema property.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{byKey: make(map[string]int, len(specs))}

	for i, spec := range specs {
		if spec.Key == "" {
			return nil, fmt.Errorf("step %d has no key", i+1)
		}
		if _, dup := r.byKey[spec.Key]; dup {
			return nil, fmt.Errorf("duplicate step key %q", spec.Key)
		}
		if spec.Payload == nil || spec.Payload.StepKey() != spec.Key {
			return nil, fmt.Errorf("step %q payload does not match its key", spec.Key)
		}

		fields := jsonFields(spec.Payload)
		for _, f := range fields {
			if _, ok := spec.Schema.Properties[f]; !ok {
				return nil, fmt.Errorf("step %q field %q has no schema property", spec.Key, f)
			}
		}
		if len(spec.Schema.Properties) != len(fields) {
			return nil, fmt.Errorf("step %q schema declares properties outside its payload", spec.Key)
		}

		schema, err := validation.Compile(spec.Schema)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", spec.Key, err)
		}

		required := append([]string(nil), spec.Schema.Required...)
		sort.Strings(required)

		r.byKey[spec.Key] = len(r.defs)
		r.defs = append(r.defs, Definition{
			Index:          len(r.defs) + 1,
			Key:            spec.Key,
			Title:          spec.Title,
			Fields:         fields,
			RequiredFields: required,
			required:       spec.Required,
			schema:         schema,
		})
	}

	if len(r.defs) == 0 {
		return nil, fmt.Errorf("registry has no steps")
	}
	return r, nil
}

// MustNewRegistry panics on a malformed step table. Misconfigured steps are programming
// errors and must surface at startup.
func MustNewRegistry(specs ...Spec) *Registry {
	r, err := NewRegistry(specs...)
	if err != nil {
		panic(fmt.Sprintf("steps: %v", err))
	}
	return r
}

// All returns every step in canonical order, regardless of predicates.
func (r *Registry) All() []Definition {
	return append([]Definition(nil), r.defs...)
}

// StepsFor returns the steps required for sub, in canonical order, renumbered 1..N.
func (r *Registry) StepsFor(sub *models.OnboardingSubmission) []Definition {
	if sub == nil {
		sub = &models.OnboardingSubmission{}
	}
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if !d.Required(sub) {
			continue
		}
		d.Index = len(out) + 1
		out = append(out, d)
	}
	return out
}

// Count is the dynamic step count for sub.
func (r *Registry) Count(sub *models.OnboardingSubmission) int {
	return len(r.StepsFor(sub))
}

// At returns the step at a 1-based index of StepsFor(sub).
func (r *Registry) At(sub *models.OnboardingSubmission, index int) (Definition, bool) {
	list := r.StepsFor(sub)
	if index < 1 || index > len(list) {
		return Definition{}, false
	}
	return list[index-1], true
}

// IndexOf returns the 1-based position of key for sub, or false when the step is skipped.
func (r *Registry) IndexOf(sub *models.OnboardingSubmission, key string) (int, bool) {
	for _, d := range r.StepsFor(sub) {
		if d.Key == key {
			return d.Index, true
		}
	}
	return 0, false
}

// Lookup finds a step without panicking. Use it where the key comes from a request.
func (r *Registry) Lookup(key string) (Definition, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Definition returns the step for key and panics on an unknown key.
func (r *Registry) Definition(key string) Definition {
	d, ok := r.Lookup(key)
	if !ok {
		panic(apperrors.NewUnknownStepError(key))
	}
	return d
}

// Validate applies the step's schema. Unknown keys panic.
func (r *Registry) Validate(key string, data models.StepData) *validation.ValidationResult {
	return r.Definition(key).Validate(data)
}

// FieldsOf lists the submission columns owned by a step.
func (r *Registry) FieldsOf(key string) []string {
	return append([]string(nil), r.Definition(key).Fields...)
}

// Progress is the percentage of the dynamic step list reached by sub.
func (r *Registry) Progress(sub *models.OnboardingSubmission) int {
	total := r.Count(sub)
	if total == 0 || sub == nil || sub.CurrentStep <= 0 {
		return 0
	}
	reached := sub.CurrentStep
	if sub.Status == models.StatusSubmitted || sub.Status == models.StatusCompleted {
		reached = total
	}
	if reached > total {
		reached = total
	}
	return reached * 100 / total
}

// StepData projects a stored submission onto the fields of one step.
func (r *Registry) StepData(sub *models.OnboardingSubmission, key string) (models.StepData, error) {
	return sub.Project(r.FieldsOf(key))
}

// ValidateStored validates one step against what is stored on sub.
func (r *Registry) ValidateStored(sub *models.OnboardingSubmission, key string) (*validation.ValidationResult, error) {
	data, err := r.StepData(sub, key)
	if err != nil {
		return nil, err
	}
	return r.Validate(key, data), nil
}

// ValidateSubmission checks every step required for sub, up to and including index upTo
// (0 means all). It returns the failing step keys in order and their field errors.
func (r *Registry) ValidateSubmission(sub *models.OnboardingSubmission, upTo int) ([]string, []apperrors.FieldError, error) {
	var failing []string
	var fieldErrs []apperrors.FieldError

	for _, d := range r.StepsFor(sub) {
		if upTo > 0 && d.Index > upTo {
			break
		}
		res, err := r.ValidateStored(sub, d.Key)
		if err != nil {
			return nil, nil, err
		}
		if !res.Valid {
			failing = append(failing, d.Key)
			fieldErrs = append(fieldErrs, res.FieldErrors(d.Key)...)
		}
	}
	return failing, fieldErrs, nil
}
