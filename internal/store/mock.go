// ABOUTME: In-memory mock implementation of the Store interface
// ABOUTME: Used by unit tests of higher layers that don't need real SQLite

package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for tests
type MockStore struct {
	mu           sync.Mutex
	users        map[string]*User
	counters     map[string]int64
	mappings     map[string]*TicketMapping
	statuses     map[string]*OnlineStatus
	dialogStates map[string][]byte
	convData     map[string]map[string]string
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{
		users:        make(map[string]*User),
		counters:     make(map[string]int64),
		mappings:     make(map[string]*TicketMapping),
		statuses:     make(map[string]*OnlineStatus),
		dialogStates: make(map[string][]byte),
		convData:     make(map[string]map[string]string),
	}
}

func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if user.TeamsUserID != "" && u.TeamsUserID == user.TeamsUserID {
			return ErrDuplicateUser
		}
		if user.SmsUserID != "" && u.SmsUserID == user.SmsUserID {
			return ErrDuplicateUser
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetUsersByColumn(ctx context.Context, column, value string) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.users {
		var field string
		switch column {
		case UserColumnAlias:
			field = u.Alias
		case UserColumnMobilePhone:
			field = u.MobilePhone
		case UserColumnTeamsUserID:
			field = u.TeamsUserID
		case UserColumnSmsUserID:
			field = u.SmsUserID
		}
		if field != "" && field == value {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) NextID(ctx context.Context, counter string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counter]++
	return m.counters[counter], nil
}

func (m *MockStore) PutMapping(ctx context.Context, mapping *TicketMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping.UpdatedAt = time.Now()
	cp := *mapping
	m.mappings[mapping.VsoID] = &cp
	return nil
}

func (m *MockStore) GetMapping(ctx context.Context, vsoID string) (*TicketMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.mappings[vsoID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mp
	return &cp, nil
}

func (m *MockStore) GetMappingByConversation(ctx context.Context, conversationID string) (*TicketMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *TicketMapping
	for _, mp := range m.mappings {
		if mp.AgentConversationID != conversationID && refConversationID(mp.EndUserConversationRef) != conversationID {
			continue
		}
		if best == nil || mp.UpdatedAt.After(best.UpdatedAt) {
			best = mp
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func refConversationID(serialized string) string {
	var ref struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal([]byte(serialized), &ref); err != nil {
		return ""
	}
	return ref.Conversation.ID
}

func (m *MockStore) DeleteMapping(ctx context.Context, vsoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mappings, vsoID)
	return nil
}

func (m *MockStore) UpsertOnlineStatus(ctx context.Context, s *OnlineStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.statuses[s.MemberType] = &cp
	return nil
}

func (m *MockStore) GetOnlineStatus(ctx context.Context, memberType string) (*OnlineStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[memberType]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockStore) SaveDialogState(ctx context.Context, conversationID string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(state))
	copy(cp, state)
	m.dialogStates[conversationID] = cp
	return nil
}

func (m *MockStore) GetDialogState(ctx context.Context, conversationID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.dialogStates[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(st))
	copy(cp, st)
	return cp, nil
}

func (m *MockStore) ClearDialogState(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dialogStates, conversationID)
	return nil
}

func (m *MockStore) ClearConversation(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.dialogStates, conversationID)
	delete(m.convData, conversationID)
	return nil
}

func (m *MockStore) SetConversationData(ctx context.Context, conversationID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.convData[conversationID] == nil {
		m.convData[conversationID] = make(map[string]string)
	}
	m.convData[conversationID][key] = value
	return nil
}

func (m *MockStore) GetConversationData(ctx context.Context, conversationID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.convData[conversationID][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MockStore) Close() error { return nil }
