// ABOUTME: Appointment booking request flow
// ABOUTME: Books through the task marketplace instead of the job board

package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/hiredesk/gateway/internal/dialog"
	"github.com/hiredesk/gateway/internal/vso"
)

// NewAppointment builds the appointment booking flow
func NewAppointment(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowAppointment,
		NewPayload: func() dialog.Payload { return &requestPayload{Kind: "appointment"} },
		Steps: []dialog.Step{
			&dialog.PromptStep{
				Name: "description",
				Prompt: func(dialog.Payload) string {
					return "What appointment should I book? Include the business, what it is for, and any preferred times."
				},
				Validate: descriptionValidator(d.MinDescriptionLength),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Description = v
				},
				RetryPrompt:  fmt.Sprintf("I need a bit more to go on — at least %d characters.", d.MinDescriptionLength+1),
				Attempts:     d.PromptAttempts,
				FallbackText: "I still could not make out the request, so I will stop here. Send `appointment` to start over.",
			},
			requireDescription(),
			&dialog.PromptStep{
				Name: "phone",
				Prompt: func(p dialog.Payload) string {
					return "What phone number should the confirmation go to?"
				},
				Validate: func(input string) (string, error) {
					trimmed := strings.TrimSpace(input)
					if len(strings.Map(keepDigits, trimmed)) < 7 {
						return "", fmt.Errorf("not a phone number")
					}
					return trimmed, nil
				},
				Assign: func(p dialog.Payload, v string) {
					if v != "" {
						p.(*requestPayload).UserPhone = v
					}
				},
				RetryPrompt:  "That does not look like a phone number. Which number should I use?",
				Attempts:     2,
				FallbackText: "I will use the number already on file.",
			},
			&dialog.PromptStep{
				Name: "deadline",
				Prompt: func(dialog.Payload) string {
					return "By when does the appointment need to happen?"
				},
				Validate: deadlineValidator(d.now),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Deadline = v
				},
				RetryPrompt:  "I could not find a date in that. By when does it need to happen?",
				Attempts:     d.PromptAttempts,
				FallbackText: fmt.Sprintf("I will assume %d days from now.", defaultDeadlineDays),
			},
			confirmStep(func(p *requestPayload) string {
				return fmt.Sprintf("To confirm: book \"%s\" by %s, confirmation to %s. Shall I go ahead? (yes/no)",
					p.Description, p.Deadline, p.UserPhone)
			}),
			&dialog.ActionStep{
				Name: "create",
				Run: func(ctx context.Context, p dialog.Payload, emit func(string)) (dialog.Next, error) {
					rp := p.(*requestPayload)
					if done, err := finishRequest(ctx, d, rp, emit); done || err != nil {
						return dialog.NextDone, err
					}
					d.postAppointmentTask(ctx, rp)
					return dialog.NextDone, nil
				},
			},
		},
	}
}

// postAppointmentTask hands the booking to the task marketplace and records
// the platform fields on the ticket. Best-effort, like the job board posting.
func (d *Deps) postAppointmentTask(ctx context.Context, p *requestPayload) {
	if d.FancyHands == nil {
		return
	}

	task, err := d.FancyHands.CreateTask(ctx,
		fmt.Sprintf("Book an appointment (project %d)", p.VsoID),
		fmt.Sprintf("%s\n\nConfirmation phone: %s", p.Description, p.UserPhone),
		appointmentBidCents)
	if err != nil {
		d.logger().Warn("creating marketplace task", "ticket", p.VsoID, "error", err)
		return
	}

	if _, err := d.Tickets.UpdateFields(ctx, p.VsoID, map[string]string{
		vso.FieldFreelancerPlatform:      "FancyHands",
		vso.FieldFreelancerPlatformJobID: task.Key,
	}); err != nil {
		d.logger().Warn("recording marketplace fields", "ticket", p.VsoID, "error", err)
	}
}

func keepDigits(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}
