// Package models defines the flow definition schema for Cove.
//
// A FlowDefinition is the declarative data model for one qualification
// questionnaire: intro/completion templates plus an ordered list of
// single-turn question steps. Flows are validated at load time so that a
// malformed definition is never surfaced mid-conversation.
package models

import (
	"errors"
	"strings"
)

// Validation constants for flow definitions.
const (
	// MaxFlowSteps bounds the number of steps in one flow.
	MaxFlowSteps = 10
	// MaxQuestionLength bounds the length of one SMS question.
	MaxQuestionLength = 1600
)

// Error variables for flow validation.
var (
	ErrEmptySteps          = errors.New("flow must have at least one step")
	ErrTooManySteps        = errors.New("flow exceeds maximum step count")
	ErrEmptyStepKey        = errors.New("step key cannot be empty")
	ErrDuplicateStepKey    = errors.New("step keys must be unique within a flow")
	ErrEmptyQuestion       = errors.New("step question cannot be empty")
	ErrQuestionTooLong     = errors.New("step question exceeds maximum length")
	ErrNoOptions           = errors.New("structured step requires at least one option")
	ErrEmptyOptionValue    = errors.New("option value cannot be empty")
	ErrDuplicateOption     = errors.New("option values must be unique within a step")
	ErrUnknownUrgentValue  = errors.New("urgent value does not reference an option")
	ErrFreeTextWithOptions = errors.New("free-text step cannot declare options")
)

// Option is one selectable answer for a structured step: a short reply
// code (e.g. "A", "1") and its human-readable label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Step is one question within a flow. Key namespaces the answer fields
// ({key}_code, {key}_label). FreeText steps accept any non-empty reply
// and declare no options.
type Step struct {
	ID           string   `json:"id"`
	Key          string   `json:"key"`
	Question     string   `json:"question"`
	InvalidText  string   `json:"invalid_text,omitempty"`
	Options      []Option `json:"options,omitempty"`
	UrgentValues []string `json:"urgent_values,omitempty"`
	FreeText     bool     `json:"free_text,omitempty"`
}

// OptionByValue returns the option whose value matches case-insensitively,
// or nil when none does.
func (s *Step) OptionByValue(value string) *Option {
	for i := range s.Options {
		if strings.EqualFold(s.Options[i].Value, value) {
			return &s.Options[i]
		}
	}
	return nil
}

// IsUrgentValue reports whether the given option value is declared urgent
// for this step (case-insensitive).
func (s *Step) IsUrgentValue(value string) bool {
	for _, v := range s.UrgentValues {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// FlowDefinition is an ordered, fixed-length SMS questionnaire for one
// business or industry. Step order is the canonical question order; step
// index is 1-based and matches Lead.CurrentStep.
type FlowDefinition struct {
	Name                  string `json:"name,omitempty"`
	Intro                 string `json:"intro,omitempty"`
	Completion            string `json:"completion,omitempty"`
	CompletionWithBooking string `json:"completion_with_booking,omitempty"`
	Steps                 []Step `json:"steps"`
}

// Validate performs schema validation on a flow definition. It is called
// once at resolution time; every built-in template and every accepted
// custom flow satisfies it.
func (f *FlowDefinition) Validate() error {
	if len(f.Steps) == 0 {
		return ErrEmptySteps
	}
	if len(f.Steps) > MaxFlowSteps {
		return ErrTooManySteps
	}

	seenKeys := make(map[string]bool, len(f.Steps))
	for i := range f.Steps {
		step := &f.Steps[i]
		if err := step.validate(); err != nil {
			return err
		}
		key := strings.ToLower(step.Key)
		if seenKeys[key] {
			return ErrDuplicateStepKey
		}
		seenKeys[key] = true
	}
	return nil
}

// validate checks a single step's invariants.
func (s *Step) validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return ErrEmptyStepKey
	}
	if strings.TrimSpace(s.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(s.Question) > MaxQuestionLength {
		return ErrQuestionTooLong
	}

	if s.FreeText {
		if len(s.Options) > 0 {
			return ErrFreeTextWithOptions
		}
		return nil
	}

	if len(s.Options) == 0 {
		return ErrNoOptions
	}
	seenValues := make(map[string]bool, len(s.Options))
	for _, opt := range s.Options {
		if opt.Value == "" {
			return ErrEmptyOptionValue
		}
		val := strings.ToUpper(opt.Value)
		if seenValues[val] {
			return ErrDuplicateOption
		}
		seenValues[val] = true
	}
	for _, uv := range s.UrgentValues {
		if !seenValues[strings.ToUpper(uv)] {
			return ErrUnknownUrgentValue
		}
	}
	return nil
}

// Normalize fills in defaulted step fields (mirrored id/key, non-nil
// option and urgent slices) so that externally supplied flows, e.g.
// AI-generated ones, are default-tolerant.
func (f *FlowDefinition) Normalize() {
	for i := range f.Steps {
		step := &f.Steps[i]
		if step.ID == "" {
			step.ID = step.Key
		}
		if step.Key == "" {
			step.Key = step.ID
		}
		if step.Options == nil {
			step.Options = []Option{}
		}
		if step.UrgentValues == nil {
			step.UrgentValues = []string{}
		}
	}
}
