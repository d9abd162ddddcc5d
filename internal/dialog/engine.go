// ABOUTME: Persistence-backed engine that drives linear conversation flows
// ABOUTME: One engine interprets every flow definition; state survives restarts

package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoActiveDialog is returned by Continue when the conversation has no
// dialog in progress.
var ErrNoActiveDialog = errors.New("no active dialog")

// ErrUnknownFlow is returned when a flow id has no registered definition
var ErrUnknownFlow = errors.New("unknown flow")

// Status of a dialog after a turn
type Status string

const (
	// StatusActive means the dialog is waiting for the user's next input
	StatusActive Status = "active"
	// StatusCompleted means the flow ran all its steps
	StatusCompleted Status = "completed"
)

// Result is what one turn of a dialog produced: the texts to send back to
// the user and whether the dialog is still waiting for input.
type Result struct {
	Status   Status
	Messages []string
}

// state is the persisted position of a conversation inside a flow
type state struct {
	FlowID    string          `json:"flow_id"`
	StepIndex int             `json:"step_index"`
	Attempts  int             `json:"attempts"`
	Payload   json.RawMessage `json:"payload"`
}

// StateStore persists dialog state between turns
type StateStore interface {
	SaveDialogState(ctx context.Context, conversationID string, state []byte) error
	GetDialogState(ctx context.Context, conversationID string) ([]byte, error)
	ClearDialogState(ctx context.Context, conversationID string) error
}

// Engine interprets registered flow definitions against persisted state
type Engine struct {
	store           StateStore
	isNotFound      func(error) bool
	flows           map[string]*Flow
	defaultAttempts int
	logger          *slog.Logger
}

// Option customizes the engine
type Option func(*Engine)

// WithDefaultAttempts sets the attempt bound used by prompt steps that do
// not set their own.
func WithDefaultAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultAttempts = n
		}
	}
}

// NewEngine wires the dialog engine to its state store. isNotFound tells the
// engine which store errors mean "no state", so it does not depend on the
// store package's sentinel directly.
func NewEngine(st StateStore, isNotFound func(error) bool, opts ...Option) *Engine {
	e := &Engine{
		store:           st,
		isNotFound:      isNotFound,
		flows:           make(map[string]*Flow),
		defaultAttempts: 3,
		logger:          slog.Default().With("component", "dialog"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a flow definition. Flow ids must be unique.
func (e *Engine) Register(flows ...*Flow) error {
	for _, f := range flows {
		if err := f.validate(); err != nil {
			return err
		}
		if _, exists := e.flows[f.ID]; exists {
			return fmt.Errorf("flow %q registered twice", f.ID)
		}
		e.flows[f.ID] = f
	}
	return nil
}

// Begin starts flowID in the given conversation, replacing any dialog
// already in progress. seed, when non-nil, initializes the payload before
// the first step runs.
func (e *Engine) Begin(ctx context.Context, conversationID, flowID string, seed func(Payload)) (*Result, error) {
	flow, ok := e.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}

	payload := flow.NewPayload()
	if seed != nil {
		seed(payload)
	}
	st := &state{FlowID: flowID}
	return e.run(ctx, conversationID, flow, st, payload, nil)
}

// Active reports whether the conversation has a dialog in progress
func (e *Engine) Active(ctx context.Context, conversationID string) (bool, error) {
	_, err := e.store.GetDialogState(ctx, conversationID)
	if err != nil {
		if e.isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("loading dialog state: %w", err)
	}
	return true, nil
}

// Continue feeds the user's input to the dialog in progress
func (e *Engine) Continue(ctx context.Context, conversationID, input string) (*Result, error) {
	raw, err := e.store.GetDialogState(ctx, conversationID)
	if err != nil {
		if e.isNotFound(err) {
			return nil, ErrNoActiveDialog
		}
		return nil, fmt.Errorf("loading dialog state: %w", err)
	}

	var st state
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding dialog state: %w", err)
	}
	flow, ok := e.flows[st.FlowID]
	if !ok {
		// A flow was removed while a conversation sat in it. Drop the
		// orphaned state so the user is not stuck.
		e.logger.Warn("dropping state for unregistered flow", "flow", st.FlowID)
		if err := e.store.ClearDialogState(ctx, conversationID); err != nil {
			return nil, fmt.Errorf("clearing orphaned dialog state: %w", err)
		}
		return nil, ErrNoActiveDialog
	}

	payload := flow.NewPayload()
	if len(st.Payload) > 0 {
		if err := json.Unmarshal(st.Payload, payload); err != nil {
			return nil, fmt.Errorf("decoding flow payload: %w", err)
		}
	}
	return e.run(ctx, conversationID, flow, &st, payload, &input)
}

// Abandon drops any dialog in progress for the conversation
func (e *Engine) Abandon(ctx context.Context, conversationID string) error {
	if err := e.store.ClearDialogState(ctx, conversationID); err != nil && !e.isNotFound(err) {
		return fmt.Errorf("clearing dialog state: %w", err)
	}
	return nil
}

// run advances the flow from the persisted position. input carries the
// user's text into the step being waited on; it is consumed by the first
// prompt step and nil thereafter.
func (e *Engine) run(ctx context.Context, conversationID string, flow *Flow, st *state, payload Payload, input *string) (*Result, error) {
	res := &Result{Status: StatusActive}
	emit := func(text string) {
		if text != "" {
			res.Messages = append(res.Messages, text)
		}
	}

	for st.StepIndex < len(flow.Steps) {
		switch step := flow.Steps[st.StepIndex].(type) {
		case *PromptStep:
			if input == nil {
				emit(step.Prompt(payload))
				if err := e.persist(ctx, conversationID, st, payload); err != nil {
					return nil, err
				}
				return res, nil
			}

			value := *input
			input = nil
			if step.Validate != nil {
				normalized, err := step.Validate(value)
				if err != nil {
					if done, err := e.handleInvalid(ctx, conversationID, flow, step, st, payload, emit); err != nil {
						return nil, err
					} else if !done {
						return res, nil
					}
					// attempts exhausted: fallback assigned, flow resumes
					continue
				}
				value = normalized
			}
			if step.Assign != nil {
				step.Assign(payload, value)
			}
			st.Attempts = 0
			st.StepIndex++

		case *ActionStep:
			next, err := step.Run(ctx, payload, emit)
			if err != nil {
				// The turn-level handler owns the apology; the dialog is
				// over either way.
				if clearErr := e.store.ClearDialogState(ctx, conversationID); clearErr != nil && !e.isNotFound(clearErr) {
					e.logger.Error("clearing dialog state after step failure", "error", clearErr)
				}
				return nil, fmt.Errorf("flow %s step %s: %w", flow.ID, step.Name, err)
			}
			if next == NextDone {
				st.StepIndex = len(flow.Steps)
				continue
			}
			st.StepIndex++

		default:
			return nil, fmt.Errorf("flow %s: unsupported step type at index %d", flow.ID, st.StepIndex)
		}
	}

	if err := e.store.ClearDialogState(ctx, conversationID); err != nil && !e.isNotFound(err) {
		return nil, fmt.Errorf("clearing dialog state: %w", err)
	}
	res.Status = StatusCompleted
	return res, nil
}

// handleInvalid counts an invalid input against the step's attempt bound.
// Below the bound it re-prompts and persists (done=false). At the bound it
// assigns the fallback value, emits the exhaustion text, and lets the flow
// resume past the prompt (done=true). The prompt terminates, the flow does
// not.
func (e *Engine) handleInvalid(ctx context.Context, conversationID string, flow *Flow, step *PromptStep, st *state, payload Payload, emit func(string)) (done bool, err error) {
	attempts := step.Attempts
	if attempts <= 0 {
		attempts = e.defaultAttempts
	}

	st.Attempts++
	if st.Attempts < attempts {
		retry := step.RetryPrompt
		if retry == "" {
			retry = step.Prompt(payload)
		}
		emit(retry)
		if err := e.persist(ctx, conversationID, st, payload); err != nil {
			return false, err
		}
		return false, nil
	}

	e.logger.Info("prompt attempts exhausted",
		"flow", flow.ID,
		"step", step.Name,
		"attempts", st.Attempts)
	emit(step.FallbackText)
	if step.Assign != nil {
		step.Assign(payload, step.Fallback)
	}
	st.Attempts = 0
	st.StepIndex++
	return true, nil
}

func (e *Engine) persist(ctx context.Context, conversationID string, st *state, payload Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding flow payload: %w", err)
	}
	st.Payload = raw

	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding dialog state: %w", err)
	}
	if err := e.store.SaveDialogState(ctx, conversationID, blob); err != nil {
		return fmt.Errorf("saving dialog state: %w", err)
	}
	return nil
}
