// ABOUTME: HTTP API handlers for chats, messages and model sessions
// ABOUTME: POST /api/chats/{id}/messages records the message and streams the answer via SSE

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Beykus-Y/beykusaysite/internal/auth"
	"github.com/Beykus-Y/beykusaysite/internal/conversation"
	"github.com/Beykus-Y/beykusaysite/internal/provider"
	"github.com/Beykus-Y/beykusaysite/internal/session"
	"github.com/Beykus-Y/beykusaysite/internal/store"
)

// defaultChatTitle names chats created without a title.
const defaultChatTitle = "New chat"

// noMessagesPreview is shown for chats that have no messages yet.
const noMessagesPreview = "No messages yet"

// ChatResponse is the JSON form of a chat.
type ChatResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	CreatedAt   string `json:"created_at"`
	LastMessage string `json:"last_message,omitempty"`
}

// MessageResponse is the JSON form of a stored message.
type MessageResponse struct {
	ID           int64   `json:"id"`
	Content      string  `json:"content"`
	ContentHTML  string  `json:"content_html"`
	Thoughts     *string `json:"thoughts"`
	ThoughtsHTML *string `json:"thoughts_html"`
	IsBot        bool    `json:"is_bot"`
	CreatedAt    string  `json:"created_at"`
}

// CreateChatRequest is the JSON request body for POST /api/chats.
type CreateChatRequest struct {
	Title *string `json:"title"`
}

// SendMessageRequest is the JSON request body for POST /api/chats/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,notblank"`
}

// ChangeModelRequest is the JSON request body for POST /api/chats/{id}/model.
type ChangeModelRequest struct {
	Model string `json:"model" validate:"required,notblank"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func chatResponse(c *store.Chat) ChatResponse {
	return ChatResponse{ID: c.ID, Title: c.Title, CreatedAt: formatTime(c.CreatedAt)}
}

// handleListModels handles GET /api/models.
func (g *Gateway) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": g.conversation.ListModels()})
}

// handleListChats handles GET /api/chats, newest first.
func (g *Gateway) handleListChats(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	chats, err := g.conversation.ListChats(r.Context(), user.UserID)
	if err != nil {
		g.logger.Error("failed to list chats", "error", err, "user_id", user.UserID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ChatResponse, 0, len(chats))
	for _, c := range chats {
		cr := chatResponse(&c.Chat)
		cr.LastMessage = noMessagesPreview
		if c.LastMessage != nil {
			cr.LastMessage = *c.LastMessage
		}
		resp = append(resp, cr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateChat handles POST /api/chats.
func (g *Gateway) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())

	var req CreateChatRequest
	// An empty body creates a chat with the default title
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	title := defaultChatTitle
	if req.Title != nil {
		title = *req.Title
	}

	chat, err := g.conversation.CreateChat(r.Context(), user.UserID, title)
	if errors.Is(err, conversation.ErrValidation) {
		g.sendJSONError(w, http.StatusBadRequest, "title must not be blank")
		return
	}
	if err != nil {
		g.logger.Error("failed to create chat", "error", err, "user_id", user.UserID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, chatResponse(chat))
}

// handleListMessages handles GET /api/chats/{id}/messages.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	chatID, ok := g.chatID(w, r)
	if !ok {
		return
	}

	msgs, err := g.conversation.History(r.Context(), user.UserID, chatID)
	if err != nil {
		g.handleConversationError(w, err, chatID)
		return
	}

	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		mr := MessageResponse{
			ID:          m.ID,
			Content:     m.Content,
			ContentHTML: g.renderer.Markdown(m.Content),
			Thoughts:    m.Thoughts,
			IsBot:       m.IsBot,
			CreatedAt:   formatTime(m.CreatedAt),
		}
		if m.Thoughts != nil {
			html := g.renderer.Markdown(*m.Thoughts)
			mr.ThoughtsHTML = &html
		}
		resp = append(resp, mr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSendMessage handles POST /api/chats/{id}/messages.
//
// The user message is validated and recorded before any streaming starts, so
// those failures are plain JSON errors. After that the response is an event
// stream and failures arrive as error records.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	chatID, ok := g.chatID(w, r)
	if !ok {
		return
	}

	var body SendMessageRequest
	if err := g.validate.decode(r.Body, &body); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before recording anything (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// A retried request with the same key must not record the message twice
	var submission string
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		submission = fmt.Sprintf("%d:%d:%s", user.UserID, chatID, key)
		if !g.submissions.Claim(submission) {
			g.sendJSONError(w, http.StatusConflict, "duplicate message")
			return
		}
	}

	req, err := g.conversation.SubmitMessage(r.Context(), user.UserID, chatID, body.Content)
	if err != nil {
		if submission != "" {
			g.submissions.Release(submission)
		}
		g.handleConversationError(w, err, chatID)
		return
	}

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err = g.conversation.Turn(r.Context(), req, &sseSink{w: w, flusher: flusher})
	if err != nil {
		g.logger.Debug("turn ended early", "chat_id", chatID, "error", err)
	}
}

// handleReset handles POST /api/chats/{id}/reset.
func (g *Gateway) handleReset(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	chatID, ok := g.chatID(w, r)
	if !ok {
		return
	}

	if err := g.conversation.Reset(r.Context(), user.UserID, chatID); err != nil {
		g.handleConversationError(w, err, chatID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleChangeModel handles POST /api/chats/{id}/model.
func (g *Gateway) handleChangeModel(w http.ResponseWriter, r *http.Request) {
	user := auth.MustFromContext(r.Context())
	chatID, ok := g.chatID(w, r)
	if !ok {
		return
	}

	var req ChangeModelRequest
	if err := g.validate.decode(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := g.conversation.ChangeModel(r.Context(), user.UserID, chatID, req.Model); err != nil {
		g.handleConversationError(w, err, chatID)
		return
	}
	model, _ := provider.ParseModel(req.Model)
	writeJSON(w, http.StatusOK, map[string]string{"model": string(model), "name": model.DisplayName()})
}

// chatID parses the {chatID} path parameter, writing a 400 if it is invalid.
func (g *Gateway) chatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || id <= 0 {
		g.sendJSONError(w, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}
	return id, true
}

// handleConversationError maps conversation errors to HTTP responses.
func (g *Gateway) handleConversationError(w http.ResponseWriter, err error, chatID int64) {
	switch {
	case errors.Is(err, conversation.ErrChatNotFound):
		g.sendJSONError(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, conversation.ErrValidation):
		g.sendJSONError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, provider.ErrUnknownModel):
		g.sendJSONError(w, http.StatusBadRequest, unknownModelMessage())
	case errors.Is(err, session.ErrSessionUnavailable):
		g.logger.Error("model session unavailable", "error", err, "chat_id", chatID)
		g.sendJSONError(w, http.StatusServiceUnavailable, "model unavailable")
	default:
		g.logger.Error("request failed", "error", err, "chat_id", chatID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func unknownModelMessage() string {
	models := provider.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.DisplayName
	}
	return "unknown model, expected one of " + strings.Join(names, ", ")
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
