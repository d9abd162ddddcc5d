// ABOUTME: Agent handover flow
// ABOUTME: Creates the agent-side conversation and completes the ticket mapping

package flows

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/dialog"
)

// NewAgentHandover builds the flow that connects an end user to a human
// agent. It creates a ticket, opens a fresh agent-side conversation, and
// stores the completed mapping so the relay can carry messages both ways.
func NewAgentHandover(d *Deps) *dialog.Flow {
	return &dialog.Flow{
		ID:         FlowAgent,
		NewPayload: func() dialog.Payload { return &requestPayload{Kind: "agent"} },
		Steps: []dialog.Step{
			&dialog.PromptStep{
				Name: "description",
				Prompt: func(dialog.Payload) string {
					return "Before I connect you, briefly describe what you need help with."
				},
				Validate: descriptionValidator(d.MinDescriptionLength),
				Assign: func(p dialog.Payload, v string) {
					p.(*requestPayload).Description = v
				},
				RetryPrompt:  "A sentence or two, please — what do you need help with?",
				Attempts:     d.PromptAttempts,
				FallbackText: "I could not make out the request. Send `agent` to try again.",
			},
			&dialog.ActionStep{
				Name: "handover",
				Run: func(ctx context.Context, p dialog.Payload, emit func(string)) (dialog.Next, error) {
					rp := p.(*requestPayload)
					if rp.Description == "" {
						return dialog.NextDone, nil
					}
					rp.Confirmed = true
					if err := d.createTicket(ctx, rp, func(string) {}); err != nil {
						return dialog.NextDone, err
					}
					if err := d.handOver(ctx, rp, emit); err != nil {
						return dialog.NextDone, err
					}
					return dialog.NextDone, nil
				},
			},
		},
	}
}

// handOver opens the agent conversation for a ticket, completes the mapping,
// and posts the intro message on the agent side.
func (d *Deps) handOver(ctx context.Context, p *requestPayload, emit func(string)) error {
	vsoID := strconv.Itoa(p.VsoID)
	topic := fmt.Sprintf("Project %d — %s", p.VsoID, p.UserName)
	members := []activity.ChannelAccount{d.BotAccount, d.AgentAccount}

	convID, err := d.Conversations.CreateConversation(ctx, d.AgentServiceURL, members, topic)
	if err != nil {
		return fmt.Errorf("creating agent conversation for ticket %s: %w", vsoID, err)
	}

	st, err := d.Mappings.Get(ctx, vsoID)
	if err != nil {
		return fmt.Errorf("loading mapping for ticket %s: %w", vsoID, err)
	}
	st.AgentConversationID = convID
	if err := d.Mappings.Save(ctx, st); err != nil {
		return fmt.Errorf("completing mapping for ticket %s: %w", vsoID, err)
	}

	intro := &activity.Activity{
		Type:         activity.TypeMessage,
		ChannelID:    activity.ChannelTeams,
		ServiceURL:   d.AgentServiceURL,
		From:         d.BotAccount,
		Conversation: activity.ConversationAccount{ID: convID},
		Text: fmt.Sprintf("**%s** needs help (project %d):\n\n%s\n\nReplies here are relayed to them.",
			p.UserName, p.VsoID, p.Description),
	}
	if _, err := d.Conversations.SendToConversation(ctx, intro); err != nil {
		return fmt.Errorf("posting agent intro for ticket %s: %w", vsoID, err)
	}

	emit(fmt.Sprintf("You are connected to an agent now (project %d). Anything you send here reaches them directly.", p.VsoID))
	if d.AgentOnline != nil {
		online, err := d.AgentOnline(ctx)
		if err != nil {
			d.logger().Warn("checking agent availability", "error", err)
		} else if !online {
			emit("Our agents are away from their desk right now, so replies may be slow.")
		}
	}
	return nil
}
