// ABOUTME: User registration flow
// ABOUTME: Collects name and email on first contact, then registers the profile

package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/dialog"
	"github.com/hiredesk/gateway/internal/recognizers"
)

// registrationPayload carries the channel identity the bot seeds plus the
// profile fields the prompts collect.
type registrationPayload struct {
	Channel       string `json:"channel"`
	ChannelUserID string `json:"channel_user_id"`
	Phone         string `json:"phone,omitempty"`

	Name  string `json:"name"`
	Email string `json:"email"`
}

// SeedRegistration initializes the registration payload from the inbound turn
func SeedRegistration(channel, channelUserID, phone string) func(dialog.Payload) {
	return func(p dialog.Payload) {
		rp, ok := p.(*registrationPayload)
		if !ok {
			return
		}
		rp.Channel = channel
		rp.ChannelUserID = channelUserID
		rp.Phone = phone
	}
}

// NewRegistration builds the first-contact registration flow. It runs before
// any service flow for users the store has never seen; the SMS channel is
// the main consumer since Teams supplies a display name on the activity.
func NewRegistration(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowRegistration,
		NewPayload: func() dialog.Payload { return &registrationPayload{} },
		Steps: []dialog.Step{
			&dialog.PromptStep{
				Name: "name",
				Prompt: func(dialog.Payload) string {
					return "Welcome! I have not met you before. What is your name?"
				},
				Validate: func(input string) (string, error) {
					trimmed := strings.TrimSpace(input)
					if trimmed == "" {
						return "", fmt.Errorf("empty name")
					}
					return trimmed, nil
				},
				Assign: func(p dialog.Payload, v string) {
					p.(*registrationPayload).Name = v
				},
				RetryPrompt: "Sorry, I did not catch that. What is your name?",
				Attempts:    2,
				Fallback:    "there",
			},
			&dialog.PromptStep{
				Name: "email",
				Prompt: func(p dialog.Payload) string {
					return fmt.Sprintf("Thanks %s. What email address should project updates go to?", p.(*registrationPayload).Name)
				},
				Validate: func(input string) (string, error) {
					trimmed := strings.TrimSpace(input)
					if !recognizers.ValidEmail(trimmed) {
						return "", fmt.Errorf("not an email address")
					}
					return strings.ToLower(trimmed), nil
				},
				Assign: func(p dialog.Payload, v string) {
					p.(*registrationPayload).Email = v
				},
				RetryPrompt:  "That does not look like an email address. Which address should I use?",
				Attempts:     d.PromptAttempts,
				FallbackText: "No problem, I will skip email updates for now.",
			},
			&dialog.ActionStep{
				Name: "register",
				Run: func(ctx context.Context, p dialog.Payload, emit func(string)) (dialog.Next, error) {
					rp := p.(*registrationPayload)
					user, err := d.Users.AddOrGetUser(ctx, rp.Channel, rp.ChannelUserID, rp.Name, rp.Phone, rp.Email)
					if err != nil {
						return dialog.NextDone, fmt.Errorf("registering user: %w", err)
					}
					d.logger().Info("user registered", "user", user.ID, "channel", rp.Channel)
					emit(fmt.Sprintf("You are all set, %s. %s", rp.Name, HelpText(rp.Channel)))
					return dialog.NextDone, nil
				},
			},
		},
	}
}

// HelpText is the capability summary shown after registration and by the
// generic help fallback.
func HelpText(channel string) string {
	if channel == activity.ChannelSMS {
		return "Text \"research\" for internet research, \"ppt\" for a presentation, \"appointment\" to book something, or \"agent\" to reach a person."
	}
	return "Send `research` for internet research, `ppt` for a presentation, `appointment` to book something, or `agent` to talk to a person. `getproject <id>` and `closeproject <id>` manage existing projects."
}
