// ABOUTME: Internet research request flow for end users
// ABOUTME: Description, deadline, confirmation, then ticket creation and job posting

package flows

import (
	"context"
	"fmt"

	"github.com/hiredesk/gateway/internal/dialog"
)

// NewResearch builds the internet research request flow
func NewResearch(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowResearch,
		NewPayload: func() dialog.Payload { return &requestPayload{Kind: "research"} },
		Steps: []dialog.Step{
			&dialog.PromptStep{
				Name: "description",
				Prompt: func(dialog.Payload) string {
					return "What would you like researched? Please describe the topic and what you need to know."
				},
				Validate: descriptionValidator(d.MinDescriptionLength),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Description = v
				},
				RetryPrompt:  fmt.Sprintf("I need a bit more detail than that — at least %d characters. What should be researched?", d.MinDescriptionLength+1),
				Attempts:     d.PromptAttempts,
				FallbackText: "I still could not make out a description, so I will stop here. Send `research` to start over.",
			},
			requireDescription(),
			&dialog.PromptStep{
				Name: "deadline",
				Prompt: func(dialog.Payload) string {
					return "When do you need the results? (for example \"next friday\" or \"2026-10-15\")"
				},
				Validate: deadlineValidator(d.now),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Deadline = v
				},
				RetryPrompt:  "I could not find a date in that. When do you need the results?",
				Attempts:     d.PromptAttempts,
				FallbackText: fmt.Sprintf("I will assume %d days from now. You can change the deadline later through an agent.", defaultDeadlineDays),
			},
			confirmStep(func(p *requestPayload) string {
				return fmt.Sprintf("To confirm: research on \"%s\", due %s. Shall I create the project? (yes/no)",
					p.Description, p.Deadline)
			}),
			&dialog.ActionStep{
				Name: "create",
				Run: func(ctx context.Context, p dialog.Payload, emit func(string)) (dialog.Next, error) {
					rp := p.(*requestPayload)
					if done, err := finishRequest(ctx, d, rp, emit); done || err != nil {
						return dialog.NextDone, err
					}
					d.postToJobBoard(ctx, rp)
					return dialog.NextDone, nil
				},
			},
		},
	}
}

// confirmStep is the shared yes/no confirmation prompt
func confirmStep(summary func(*requestPayload) string) *dialog.PromptStep {
	return &dialog.PromptStep{
		Name: "confirm",
		Prompt: func(p dialog.Payload) string {
			return summary(p.(*requestPayload))
		},
		Validate: yesNoValidator,
		Assign: func(p dialog.Payload, v string) {
			p.(*requestPayload).Confirmed = v == "yes"
		},
		RetryPrompt:  "Please answer yes or no. Shall I create the project?",
		Attempts:     2,
		Fallback:     "no",
		FallbackText: "I will take that as a no.",
	}
}

// finishRequest handles the shared tail of every request flow: bail out on
// declined confirmation or an unusable description, otherwise create the
// ticket. done means the flow should stop without creating anything.
func finishRequest(ctx context.Context, d *Deps, p *requestPayload, emit func(string)) (done bool, err error) {
	if !p.Confirmed {
		emit("No problem, nothing was created.")
		return true, nil
	}
	if p.Description == "" {
		emit("I do not have a usable description, so nothing was created.")
		return true, nil
	}
	if err := d.createTicket(ctx, p, emit); err != nil {
		return false, err
	}
	return false, nil
}
