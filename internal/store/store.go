// ABOUTME: Store interface and data types for hiredesk-gateway persistence
// ABOUTME: Defines users, ticket mappings, online status, and dialog state storage

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when a user already exists for a channel identity
var ErrDuplicateUser = errors.New("user already exists")

// User is a registered end user, created once per channel identity and looked
// up by the channel-specific id column thereafter.
type User struct {
	ID          string
	Alias       string
	Name        string
	MobilePhone string
	TeamsUserID string
	SmsUserID   string
	CreatedAt   time.Time
}

// Columns a user lookup may filter on. Anything else is rejected to keep
// queries out of string-building territory.
const (
	UserColumnAlias       = "alias"
	UserColumnMobilePhone = "mobile_phone"
	UserColumnTeamsUserID = "teams_user_id"
	UserColumnSmsUserID   = "sms_user_id"
)

// TicketMapping joins the two halves of a handed-over conversation. One row
// per ticket; writes are insert-or-replace, so only the latest mapping per
// ticket survives (last-writer-wins, see package doc).
type TicketMapping struct {
	VsoID                  string
	EndUserName            string
	EndUserID              string
	EndUserConversationRef string // serialized activity.ConversationReference
	AgentConversationID    string
	UpdatedAt              time.Time
}

// Member types tracked in the online status table.
const (
	MemberTypeAgent   = "agent"
	MemberTypeEndUser = "enduser"
)

// OnlineStatus records when a member type was last seen active. It feeds the
// "may be slow to respond" notice and nothing else.
type OnlineStatus struct {
	MemberType         string
	Name               string
	BotFrameworkUserID string
	LastActiveOn       time.Time
}

// Store defines the interface for gateway persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUsersByColumn(ctx context.Context, column, value string) ([]*User, error)

	// NextID allocates the next value of a named counter. Allocation is
	// atomic; two concurrent calls never return the same value.
	NextID(ctx context.Context, counter string) (int64, error)

	// Ticket mappings (insert-or-replace)
	PutMapping(ctx context.Context, m *TicketMapping) error
	GetMapping(ctx context.Context, vsoID string) (*TicketMapping, error)
	// GetMappingByConversation finds the mapping a conversation belongs to,
	// matching either the agent side or the end-user side. The relay uses it
	// to route inbound messages.
	GetMappingByConversation(ctx context.Context, conversationID string) (*TicketMapping, error)
	DeleteMapping(ctx context.Context, vsoID string) error

	// Online status
	UpsertOnlineStatus(ctx context.Context, s *OnlineStatus) error
	GetOnlineStatus(ctx context.Context, memberType string) (*OnlineStatus, error)

	// Dialog state, keyed by conversation id. The payload is the serialized
	// (flow id, step index, flow payload) triple owned by the dialog engine.
	SaveDialogState(ctx context.Context, conversationID string, state []byte) error
	GetDialogState(ctx context.Context, conversationID string) ([]byte, error)
	ClearDialogState(ctx context.Context, conversationID string) error

	// ClearConversation removes all per-conversation state (dialog state and
	// conversation data) for the /resetbotchat command.
	ClearConversation(ctx context.Context, conversationID string) error

	// Conversation data: small per-conversation key/value records that are
	// not dialog state (welcome shown flag, last active flow, ...).
	SetConversationData(ctx context.Context, conversationID, key, value string) error
	GetConversationData(ctx context.Context, conversationID, key string) (string, error)

	// Close releases any resources held by the store
	Close() error
}
