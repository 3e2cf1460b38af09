// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]*User
	emails   map[string]int64 // lowercased email -> user ID
	chats    map[int64]*Chat
	messages map[int64][]*Message // keyed by chat ID

	// AppendErr, when set, is returned by AppendMessage instead of storing.
	AppendErr error
	// PingErr is returned by Ping.
	PingErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[int64]*User),
		emails:   make(map[string]int64),
		chats:    make(map[int64]*Chat),
		messages: make(map[int64][]*Message),
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := m.emails[email]; ok {
		return ErrDuplicateEmail
	}
	user.ID = m.id()
	user.Email = email
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.ID] = &u
	m.emails[email] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	id, ok := m.emails[strings.ToLower(email)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetUser(ctx, id)
}

// CreateChat stores a new chat.
func (m *MockStore) CreateChat(ctx context.Context, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat.ID = m.id()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now()
	}
	c := *chat
	m.chats[c.ID] = &c
	return nil
}

// GetChat retrieves a chat by ID.
func (m *MockStore) GetChat(ctx context.Context, id int64) (*Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// ListChats returns the user's chats, newest first.
func (m *MockStore) ListChats(ctx context.Context, userID int64) ([]*ChatSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chats []*ChatSummary
	for _, c := range m.chats {
		if c.UserID != userID {
			continue
		}
		summary := &ChatSummary{Chat: *c}
		if msgs := m.messages[c.ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1].Content
			summary.LastMessage = &last
		}
		chats = append(chats, summary)
	}

	sort.Slice(chats, func(i, j int) bool {
		if !chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].CreatedAt.After(chats[j].CreatedAt)
		}
		return chats[i].ID > chats[j].ID
	})
	return chats, nil
}

// AppendMessage stores a message.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return m.AppendErr
	}
	if _, ok := m.chats[msg.ChatID]; !ok {
		return ErrNotFound
	}
	msg.ID = m.id()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	cp := *msg
	if cp.Thoughts != nil && strings.TrimSpace(*cp.Thoughts) == "" {
		cp.Thoughts = nil
	}
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], &cp)
	return nil
}

// ListMessages returns a chat's messages in insertion order.
func (m *MockStore) ListMessages(ctx context.Context, chatID int64) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[chatID]
	result := make([]*Message, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		result[i] = &cp
	}
	return result, nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// MessageCount returns how many messages a chat has. Test helper.
func (m *MockStore) MessageCount(chatID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[chatID])
}
