// ABOUTME: Presentation design request flow
// ABOUTME: Adds a template/layout detail prompt on top of the shared request steps

package flows

import (
	"context"
	"fmt"

	"github.com/hiredesk/gateway/internal/dialog"
)

// NewPPT builds the presentation design request flow
func NewPPT(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowPPT,
		NewPayload: func() dialog.Payload { return &requestPayload{Kind: "presentation"} },
		Steps: []dialog.Step{
			&dialog.PromptStep{
				Name: "description",
				Prompt: func(dialog.Payload) string {
					return "Tell me about the presentation you need: the subject, the audience, and roughly how many slides."
				},
				Validate: descriptionValidator(d.MinDescriptionLength),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Description = v
				},
				RetryPrompt:  fmt.Sprintf("A little more detail please — at least %d characters.", d.MinDescriptionLength+1),
				Attempts:     d.PromptAttempts,
				FallbackText: "I still could not make out a description, so I will stop here. Send `ppt` to start over.",
			},
			requireDescription(),
			&dialog.PromptStep{
				Name: "template",
				Prompt: func(dialog.Payload) string {
					return "Any template, branding, or layout preferences? Reply \"none\" if not."
				},
				Assign: func(p dialog.Payload, v string) {
					if v != "none" {
						p.(*requestPayload).AdditionalInfo = v
					}
				},
			},
			&dialog.PromptStep{
				Name: "deadline",
				Prompt: func(dialog.Payload) string {
					return "When do you need the deck?"
				},
				Validate: deadlineValidator(d.now),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Deadline = v
				},
				RetryPrompt:  "I could not find a date in that. When do you need the deck?",
				Attempts:     d.PromptAttempts,
				FallbackText: fmt.Sprintf("I will assume %d days from now.", defaultDeadlineDays),
			},
			confirmStep(func(p *requestPayload) string {
				return fmt.Sprintf("To confirm: a presentation on \"%s\", due %s. Shall I create the project? (yes/no)",
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
