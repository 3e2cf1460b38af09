// ABOUTME: Live model conversation bound to one chat
// ABOUTME: Tracks the active model, last use time and serializes turns on the chat

package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Beykus-Y/beykusaysite/internal/provider"
)

// Session holds the provider conversation for one chat.
type Session struct {
	chatID int64
	turn   *semaphore.Weighted

	mu       sync.Mutex
	model    provider.Model
	conv     provider.Conversation
	lastUsed time.Time
}

func newSession(chatID int64, model provider.Model, conv provider.Conversation, now time.Time) *Session {
	return &Session{
		chatID:   chatID,
		turn:     semaphore.NewWeighted(1),
		model:    model,
		conv:     conv,
		lastUsed: now,
	}
}

// ChatID returns the chat this session belongs to.
func (s *Session) ChatID() int64 {
	return s.chatID
}

// Model returns the active model.
func (s *Session) Model() provider.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Conversation returns the current provider handle.
func (s *Session) Conversation() provider.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// LastUsed returns when the session was last handed out or reset.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// BeginTurn waits until no other turn runs on this chat. The returned
// function ends the turn and may be called more than once.
func (s *Session) BeginTurn(ctx context.Context) (func(), error) {
	if err := s.turn.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { s.turn.Release(1) })
	}, nil
}

// Send forwards text to the current conversation.
func (s *Session) Send(ctx context.Context, text string) (provider.Stream, error) {
	return s.Conversation().Send(ctx, text)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

func (s *Session) reinitialize(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conv.Reinitialize(); err != nil {
		return err
	}
	s.lastUsed = now
	return nil
}

func (s *Session) replace(model provider.Model, conv provider.Conversation, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	s.conv = conv
	s.lastUsed = now
}
