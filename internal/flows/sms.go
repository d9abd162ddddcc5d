// ABOUTME: SMS request flow
// ABOUTME: A terser variant of the research flow for the text-message channel

package flows

import (
	"context"
	"fmt"

	"github.com/hiredesk/gateway/internal/dialog"
)

// NewSMSRequest builds the service-request flow used on the SMS channel.
// Same shape as the research flow, shorter wording: SMS keyboards earn
// shorter prompts.
func NewSMSRequest(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowSMSRequest,
		NewPayload: func() dialog.Payload { return &requestPayload{Kind: "research"} },
		Steps: []dialog.Step{
			&dialog.PromptStep{
				Name: "description",
				Prompt: func(dialog.Payload) string {
					return "What do you need? Describe it in a sentence or two."
				},
				Validate: descriptionValidator(d.MinDescriptionLength),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Description = v
				},
				RetryPrompt:  "A little more detail please. What do you need?",
				Attempts:     d.PromptAttempts,
				FallbackText: "Could not make that out. Text \"research\" to start over.",
			},
			requireDescription(),
			&dialog.PromptStep{
				Name: "deadline",
				Prompt: func(dialog.Payload) string {
					return "By when? (e.g. \"friday\" or \"10/15\")"
				},
				Validate: deadlineValidator(d.now),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Deadline = v
				},
				RetryPrompt:  "Did not catch a date. By when?",
				Attempts:     d.PromptAttempts,
				FallbackText: fmt.Sprintf("Assuming %d days from now.", defaultDeadlineDays),
			},
			confirmStep(func(p *requestPayload) string {
				return fmt.Sprintf("Create project \"%s\" due %s? (yes/no)", p.Description, p.Deadline)
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
