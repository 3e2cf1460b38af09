// ABOUTME: Store interface and data types for beykus-gateway persistence
// ABOUTME: Defines User, Chat, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when registering an email that is already taken
var ErrDuplicateEmail = errors.New("email already registered")

// User is a registered account
type User struct {
	ID           int64
	Name         string
	Email        string // stored lowercased
	PasswordHash string
	CreatedAt    time.Time
}

// Chat is a conversation owned by one user
type Chat struct {
	ID        int64
	UserID    int64
	Title     string
	CreatedAt time.Time
}

// ChatSummary is a chat with a preview of its newest message
type ChatSummary struct {
	Chat
	// LastMessage is nil when the chat has no messages yet
	LastMessage *string
}

// Message is one stored chat message. Bot messages carry the owner's UserID.
type Message struct {
	ID      int64
	ChatID  int64
	UserID  int64
	Content string
	// Thoughts holds the model's reasoning for bot messages, nil when there was none
	Thoughts  *string
	IsBot     bool
	CreatedAt time.Time
}

// Store defines the interface for chat persistence
type Store interface {
	// CreateUser inserts a user and sets its ID.
	// Returns ErrDuplicateEmail if the email is taken.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateChat inserts a chat and sets its ID.
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, id int64) (*Chat, error)
	// ListChats returns the user's chats, newest first.
	ListChats(ctx context.Context, userID int64) ([]*ChatSummary, error)

	// AppendMessage inserts a message and sets its ID.
	AppendMessage(ctx context.Context, msg *Message) error
	// ListMessages returns a chat's messages, oldest first.
	ListMessages(ctx context.Context, chatID int64) ([]*Message, error)

	Ping(ctx context.Context) error
	Close() error
}
