// ABOUTME: Cross-conversation message relay for handed-over tickets
// ABOUTME: Fire-and-forget sends in both directions; no ordering guarantee

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/mapping"
	"github.com/hiredesk/gateway/internal/store"
)

// Mappings looks up the handover record a conversation belongs to
type Mappings interface {
	GetByConversation(ctx context.Context, conversationID string) (*mapping.State, error)
}

// Sender delivers relayed activities
type Sender interface {
	SendToConversation(ctx context.Context, act *activity.Activity) (string, error)
}

// Service forwards messages between the two sides of a handed-over ticket.
// Sends are fire-and-forget: each relayed message is delivered on its own
// goroutine and failures are logged, so neither side blocks the other.
type Service struct {
	maps            Mappings
	sender          Sender
	agentServiceURL string
	botAccount      activity.ChannelAccount
	logger          *slog.Logger

	wg sync.WaitGroup
}

// New creates a relay over the given mapping lookup and sender
func New(maps Mappings, sender Sender, agentServiceURL string, bot activity.ChannelAccount, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		maps:            maps,
		sender:          sender,
		agentServiceURL: agentServiceURL,
		botAccount:      bot,
		logger:          logger.With("component", "relay"),
	}
}

// Relay forwards an inbound message to the other side of its ticket, when
// the conversation is part of a completed handover. handled is false when
// there is nothing to relay and the turn should proceed normally.
func (s *Service) Relay(ctx context.Context, act *activity.Activity) (handled bool, err error) {
	if act.Type != activity.TypeMessage || act.Text == "" {
		return false, nil
	}

	st, err := s.maps.GetByConversation(ctx, act.Conversation.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up handover for conversation: %w", err)
	}
	if !st.IsConversationHandedOverToAgent() {
		return false, nil
	}

	var out *activity.Activity
	if act.Conversation.ID == st.AgentConversationID {
		out = activity.NewMessage(st.EndUserConversationRef, act.Text)
	} else {
		out = &activity.Activity{
			Type:         activity.TypeMessage,
			ChannelID:    activity.ChannelTeams,
			ServiceURL:   s.agentServiceURL,
			From:         s.botAccount,
			Conversation: activity.ConversationAccount{ID: st.AgentConversationID},
			Text:         fmt.Sprintf("**%s**: %s", st.EndUserName, act.Text),
		}
	}

	// The send outlives the inbound turn; webhook cancellation must not
	// drop a relayed message.
	sendCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.sender.SendToConversation(sendCtx, out); err != nil {
			s.logger.Error("relaying message", "ticket", st.VsoID, "error", err)
		}
	}()
	return true, nil
}

// Wait blocks until all in-flight relayed sends finish. Used at shutdown
// and by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}
