// ABOUTME: Flow and step definitions interpreted by the dialog engine
// ABOUTME: Flows are data: a typed payload plus an ordered list of steps

package dialog

import (
	"context"
	"fmt"
)

// Payload holds a flow's typed, JSON-serializable working data. Each flow
// declares its own payload struct; the engine round-trips it through the
// state store between turns.
type Payload interface{}

// Next tells the engine how to proceed after an action step
type Next int

const (
	// NextContinue advances to the following step
	NextContinue Next = iota
	// NextDone ends the flow immediately, skipping any remaining steps
	NextDone
)

// Step is one position in a flow: either a PromptStep or an ActionStep
type Step interface {
	stepName() string
}

// PromptStep sends a prompt and waits for the user's reply. Validate
// normalizes the reply or rejects it; rejected input is re-prompted up to
// the attempt bound, after which the Fallback value is assigned and the
// flow resumes.
type PromptStep struct {
	Name   string
	Prompt func(p Payload) string

	// Validate returns the normalized value, or an error for invalid
	// input. Nil accepts the raw text.
	Validate func(input string) (string, error)
	// Assign writes the accepted (or fallback) value into the payload
	Assign func(p Payload, value string)

	// RetryPrompt is sent after invalid input; empty reuses Prompt.
	RetryPrompt string
	// Attempts bounds consecutive invalid inputs; zero uses the engine
	// default.
	Attempts int
	// Fallback is assigned when attempts are exhausted
	Fallback string
	// FallbackText is sent when attempts are exhausted
	FallbackText string
}

func (s *PromptStep) stepName() string { return s.Name }

// ActionStep runs side effects: backend calls, ticket creation, handover.
// emit queues text for the user. Returning NextDone ends the flow early.
type ActionStep struct {
	Name string
	Run  func(ctx context.Context, p Payload, emit func(text string)) (Next, error)
}

func (s *ActionStep) stepName() string { return s.Name }

// Flow is a linear conversation definition
type Flow struct {
	ID         string
	NewPayload func() Payload
	Steps      []Step
}

func (f *Flow) validate() error {
	if f.ID == "" {
		return fmt.Errorf("flow has no id")
	}
	if f.NewPayload == nil {
		return fmt.Errorf("flow %s has no payload constructor", f.ID)
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("flow %s has no steps", f.ID)
	}
	for i, step := range f.Steps {
		switch s := step.(type) {
		case *PromptStep:
			if s.Prompt == nil {
				return fmt.Errorf("flow %s step %d (%s) has no prompt", f.ID, i, s.Name)
			}
		case *ActionStep:
			if s.Run == nil {
				return fmt.Errorf("flow %s step %d (%s) has no action", f.ID, i, s.Name)
			}
		default:
			return fmt.Errorf("flow %s step %d has unsupported type", f.ID, i)
		}
	}
	return nil
}
