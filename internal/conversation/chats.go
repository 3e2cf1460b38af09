// ABOUTME: Chat operations around turns: creating and listing chats, history,
// ABOUTME: recording user messages and controlling a chat's model session

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Beykus-Y/beykusaysite/internal/provider"
	"github.com/Beykus-Y/beykusaysite/internal/store"
)

// CreateChat creates a chat owned by userID. The title is trimmed and cut
// to MaxTitleLength characters.
func (s *Service) CreateChat(ctx context.Context, userID int64, title string) (*store.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title must not be blank", ErrValidation)
	}
	if runes := []rune(title); len(runes) > MaxTitleLength {
		title = string(runes[:MaxTitleLength]) + "..."
	}

	chat := &store.Chat{UserID: userID, Title: title}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	s.logger.Info("chat created", "chat_id", chat.ID, "user_id", userID)
	return chat, nil
}

// ListChats returns the user's chats, newest first.
func (s *Service) ListChats(ctx context.Context, userID int64) ([]*store.ChatSummary, error) {
	chats, err := s.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return chats, nil
}

// History returns the chat's messages in the order they were written.
func (s *Service) History(ctx context.Context, userID, chatID int64) ([]*store.Message, error) {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

// SubmitMessage validates a user message and records it before the turn
// that answers it runs. The returned request is ready for Turn.
func (s *Service) SubmitMessage(ctx context.Context, userID, chatID int64, content string) (TurnRequest, error) {
	content = strings.TrimSpace(content)
	req := TurnRequest{ChatID: chatID, AuthorID: userID, Content: content}
	if err := s.validate.Struct(req); err != nil {
		return TurnRequest{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return TurnRequest{}, err
	}

	msg := &store.Message{ChatID: chatID, UserID: userID, Content: content}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return TurnRequest{}, fmt.Errorf("failed to record message: %w", err)
	}
	s.logger.Debug("user message recorded", "chat_id", chatID, "message_id", msg.ID)
	return req, nil
}

// Reset clears the model's memory of the chat. The stored history is kept.
func (s *Service) Reset(ctx context.Context, userID, chatID int64) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	return s.sessions.Reset(chatID)
}

// ChangeModel switches the chat's session to the named model. name may be a
// model id or its display name.
func (s *Service) ChangeModel(ctx context.Context, userID, chatID int64, name string) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	return s.sessions.ChangeModel(chatID, name)
}

// ListModels returns the models a chat can use.
func (s *Service) ListModels() []provider.ModelInfo {
	return provider.Models()
}

// ownedChat returns the chat if it exists and belongs to userID.
func (s *Service) ownedChat(ctx context.Context, userID, chatID int64) (*store.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading chat: %w", err)
	}
	if chat.UserID != userID {
		return nil, ErrChatNotFound
	}
	return chat, nil
}
