// ABOUTME: Conversation mapping between end-user and agent threads per ticket
// ABOUTME: Persists to the local store and mirrors into ticket custom fields

package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/store"
	"github.com/hiredesk/gateway/internal/vso"
)

// State is the cross-channel join record for one ticket. The mapping between
// the end user's conversation and the agent's conversation is what lets the
// bot relay messages between the two independently addressed threads.
type State struct {
	VsoID                  string
	EndUserName            string
	EndUserID              string
	EndUserConversationRef activity.ConversationReference
	AgentConversationID    string
}

// IsConversationHandedOverToAgent holds iff both conversation ids are set.
func (s *State) IsConversationHandedOverToAgent() bool {
	return s.EndUserConversationRef.Conversation.ID != "" && s.AgentConversationID != ""
}

// TicketFields is what the mapping layer needs from the work item tracker
type TicketFields interface {
	UpdateFields(ctx context.Context, id int, fields map[string]string) (*vso.WorkItem, error)
	GetTicket(ctx context.Context, id int) (*vso.WorkItem, error)
}

// Service persists conversation mappings
type Service struct {
	store   store.Store
	tickets TicketFields
	logger  *slog.Logger
}

// New creates a mapping service over the given store and ticket tracker
func New(st store.Store, tickets TicketFields, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		tickets: tickets,
		logger:  logger.With("component", "mapping"),
	}
}

// CreateNewMapping writes the mapping row for a ticket. Insert-or-replace:
// a later write for the same ticket overwrites the row, so only the latest
// mapping survives.
func (s *Service) CreateNewMapping(ctx context.Context, st *State) (*store.TicketMapping, error) {
	ref, err := json.Marshal(st.EndUserConversationRef)
	if err != nil {
		return nil, fmt.Errorf("encoding conversation reference: %w", err)
	}

	row := &store.TicketMapping{
		VsoID:                  st.VsoID,
		EndUserName:            st.EndUserName,
		EndUserID:              st.EndUserID,
		EndUserConversationRef: string(ref),
		AgentConversationID:    st.AgentConversationID,
	}
	if err := s.store.PutMapping(ctx, row); err != nil {
		return nil, err
	}

	s.logger.Debug("mapping written",
		"vso_id", st.VsoID,
		"handed_over", st.IsConversationHandedOverToAgent())
	return row, nil
}

// Get returns the mapping state for a ticket from the local store
func (s *Service) Get(ctx context.Context, vsoID string) (*State, error) {
	row, err := s.store.GetMapping(ctx, vsoID)
	if err != nil {
		return nil, err
	}
	return stateFromRow(row)
}

// GetByConversation finds the mapping a conversation participates in, on
// either side. ErrNotFound passes through when the conversation is not part
// of any handover.
func (s *Service) GetByConversation(ctx context.Context, conversationID string) (*State, error) {
	row, err := s.store.GetMappingByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return stateFromRow(row)
}

// Delete drops the mapping row for a ticket, typically when it is closed
func (s *Service) Delete(ctx context.Context, vsoID string) error {
	return s.store.DeleteMapping(ctx, vsoID)
}

// SaveInVso mirrors the mapping into the ticket's custom fields
func (s *Service) SaveInVso(ctx context.Context, st *State) error {
	id, err := strconv.Atoi(st.VsoID)
	if err != nil {
		return fmt.Errorf("invalid ticket id %q: %w", st.VsoID, err)
	}

	fields := map[string]string{
		vso.FieldEndUserName:           st.EndUserName,
		vso.FieldEndUserID:             st.EndUserID,
		vso.FieldEndUserConversationID: st.EndUserConversationRef.Conversation.ID,
		vso.FieldAgentConversationID:   st.AgentConversationID,
	}
	if _, err := s.tickets.UpdateFields(ctx, id, fields); err != nil {
		return fmt.Errorf("writing mapping fields to ticket %d: %w", id, err)
	}
	return nil
}

// GetFromVso reads the mapping back from the ticket's custom fields. The
// returned state carries only the conversation id for the end-user side; the
// full conversation reference lives in the local store.
func (s *Service) GetFromVso(ctx context.Context, vsoID string) (*State, error) {
	id, err := strconv.Atoi(vsoID)
	if err != nil {
		return nil, fmt.Errorf("invalid ticket id %q: %w", vsoID, err)
	}

	item, err := s.tickets.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	st := &State{
		VsoID:               vsoID,
		EndUserName:         item.StringField(vso.FieldEndUserName),
		EndUserID:           item.StringField(vso.FieldEndUserID),
		AgentConversationID: item.StringField(vso.FieldAgentConversationID),
	}
	st.EndUserConversationRef.Conversation.ID = item.StringField(vso.FieldEndUserConversationID)
	return st, nil
}

// Save persists the mapping to both the local store and the ticket, then
// reads the ticket fields back and verifies them. A mismatch means the write
// was lost or clobbered and is surfaced as an error.
func (s *Service) Save(ctx context.Context, st *State) error {
	if _, err := s.CreateNewMapping(ctx, st); err != nil {
		return err
	}
	if err := s.SaveInVso(ctx, st); err != nil {
		return err
	}

	check, err := s.GetFromVso(ctx, st.VsoID)
	if err != nil {
		return fmt.Errorf("verifying mapping for ticket %s: %w", st.VsoID, err)
	}
	if check.EndUserName != st.EndUserName ||
		check.EndUserConversationRef.Conversation.ID != st.EndUserConversationRef.Conversation.ID {
		return fmt.Errorf("mapping verification failed for ticket %s: read back %q/%q, wrote %q/%q",
			st.VsoID,
			check.EndUserName, check.EndUserConversationRef.Conversation.ID,
			st.EndUserName, st.EndUserConversationRef.Conversation.ID)
	}
	return nil
}

func stateFromRow(row *store.TicketMapping) (*State, error) {
	st := &State{
		VsoID:               row.VsoID,
		EndUserName:         row.EndUserName,
		EndUserID:           row.EndUserID,
		AgentConversationID: row.AgentConversationID,
	}
	if row.EndUserConversationRef != "" {
		if err := json.Unmarshal([]byte(row.EndUserConversationRef), &st.EndUserConversationRef); err != nil {
			return nil, fmt.Errorf("decoding conversation reference for ticket %s: %w", row.VsoID, err)
		}
	}
	return st, nil
}
