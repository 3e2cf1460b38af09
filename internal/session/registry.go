// ABOUTME: Process-wide registry of chat sessions keyed by chat id
// ABOUTME: Creates sessions on demand, resets or switches their model, and sweeps idle ones

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Beykus-Y/beykusaysite/internal/provider"
)

// ErrSessionUnavailable is returned when a provider conversation cannot be
// created or reinitialized.
var ErrSessionUnavailable = errors.New("session unavailable")

// Registry maps chat ids to sessions. All lookups, inserts and removals
// happen under one mutex, so there is at most one session per chat.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	factory  provider.Factory
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry creates an empty registry that builds conversations with factory.
func NewRegistry(factory provider.Factory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[int64]*Session),
		factory:  factory,
		logger:   logger.With("component", "sessions"),
		now:      time.Now,
	}
}

// GetOrCreate returns the chat's session, creating one on model if there is
// none. The session's last-use time is refreshed either way. On failure the
// registry is left unchanged.
func (r *Registry) GetOrCreate(ctx context.Context, chatID int64, model provider.Model) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[chatID]; ok {
		s.touch(now)
		return s, nil
	}

	conv, err := r.factory.NewConversation(model)
	if err != nil {
		r.logger.Error("failed to create session", "chat_id", chatID, "model", model, "error", err)
		return nil, fmt.Errorf("%w: chat %d: %w", ErrSessionUnavailable, chatID, err)
	}
	s := newSession(chatID, model, conv, now)
	r.sessions[chatID] = s
	r.logger.Info("session created", "chat_id", chatID, "model", model, "sessions", len(r.sessions))
	return s, nil
}

// Get returns the chat's session without refreshing it.
func (r *Registry) Get(chatID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[chatID]
	return s, ok
}

// Reset clears the conversation history of the chat's session. A chat with
// no session is left alone. If the provider cannot reinitialize, the
// session is dropped and the next turn starts a fresh one.
func (r *Registry) Reset(chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resetLocked(chatID)
}

func (r *Registry) resetLocked(chatID int64) error {
	s, ok := r.sessions[chatID]
	if !ok {
		r.logger.Debug("reset without session", "chat_id", chatID)
		return nil
	}
	if err := s.reinitialize(r.now()); err != nil {
		delete(r.sessions, chatID)
		r.logger.Error("reset failed, session dropped", "chat_id", chatID, "error", err)
		return fmt.Errorf("%w: resetting chat %d: %w", ErrSessionUnavailable, chatID, err)
	}
	r.logger.Info("session reset", "chat_id", chatID)
	return nil
}

// ChangeModel switches the chat to the named model. A chat without a session
// gets one on that model directly. Choosing the current model resets the
// history. If the new conversation cannot be built the session is dropped.
func (r *Registry) ChangeModel(chatID int64, name string) error {
	model, err := provider.ParseModel(name)
	if err != nil {
		return err
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[chatID]
	if ok && s.Model() == model {
		return r.resetLocked(chatID)
	}

	conv, err := r.factory.NewConversation(model)
	if err != nil {
		delete(r.sessions, chatID)
		r.logger.Error("model change failed", "chat_id", chatID, "model", model, "error", err)
		return fmt.Errorf("%w: switching chat %d to %s: %w", ErrSessionUnavailable, chatID, model, err)
	}

	if !ok {
		r.sessions[chatID] = newSession(chatID, model, conv, now)
		r.logger.Info("session created", "chat_id", chatID, "model", model, "sessions", len(r.sessions))
		return nil
	}
	previous := s.Model()
	s.replace(model, conv, now)
	r.logger.Info("session model changed", "chat_id", chatID, "from", previous, "to", model)
	return nil
}

// Sweep removes sessions idle for longer than idle as of now and returns how
// many were removed.
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []int64
	for id, s := range r.sessions {
		if s.idleSince(now) > idle {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.sessions, id)
	}
	if len(expired) > 0 {
		r.logger.Info("swept idle sessions", "removed", len(expired), "remaining", len(r.sessions))
	}
	return len(expired)
}

// Remove drops the chat's session, if any.
func (r *Registry) Remove(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chatID)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
