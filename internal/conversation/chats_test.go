// ABOUTME: Tests for chat operations of the conversation service
// ABOUTME: Covers chat creation rules, ownership checks, message recording and model control

package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beykus-Y/beykusaysite/internal/provider"
	"github.com/Beykus-Y/beykusaysite/internal/session"
	"github.com/Beykus-Y/beykusaysite/internal/store"
)

func TestCreateChat_Title(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chat, err := f.svc.CreateChat(ctx, f.userID, "  Weekend plans \n")
	require.NoError(t, err)
	assert.Equal(t, "Weekend plans", chat.Title)
	assert.NotZero(t, chat.ID)

	long := strings.Repeat("ж", 120)
	chat, err = f.svc.CreateChat(ctx, f.userID, long)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ж", 100)+"...", chat.Title)

	_, err = f.svc.CreateChat(ctx, f.userID, "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateChat(ctx, f.userID, "second")
	require.NoError(t, err)

	chats, err := f.svc.ListChats(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, chats, 2)

	chats, err = f.svc.ListChats(ctx, f.userID+100)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestSubmitMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitMessage(ctx, f.userID, f.chatID, "what is up")
	require.NoError(t, err)
	assert.Equal(t, f.request("what is up"), req)

	msgs, err := f.svc.History(ctx, f.userID, f.chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsBot)
	assert.Equal(t, f.userID, msgs[0].UserID)

	_, err = f.svc.SubmitMessage(ctx, f.userID, f.chatID, "  ")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, f.store.MessageCount(f.chatID))
}

func TestSubmitMessage_TrimsContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitMessage(ctx, f.userID, f.chatID, "   question  \n")
	require.NoError(t, err)
	assert.Equal(t, "question", req.Content)

	msgs, err := f.svc.History(ctx, f.userID, f.chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "question", msgs[0].Content)

	padded := "  " + strings.Repeat("a", 4096) + "\n\n"
	req, err = f.svc.SubmitMessage(ctx, f.userID, f.chatID, padded)
	require.NoError(t, err, "padding does not count toward the length limit")
	assert.Len(t, req.Content, 4096)

	_, err = f.svc.SubmitMessage(ctx, f.userID, f.chatID, strings.Repeat("a", 4097))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &store.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "h"}
	require.NoError(t, f.store.CreateUser(ctx, other))

	_, err := f.svc.History(ctx, other.ID, f.chatID)
	assert.ErrorIs(t, err, ErrChatNotFound)

	_, err = f.svc.SubmitMessage(ctx, other.ID, f.chatID, "hi")
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.Equal(t, 0, f.store.MessageCount(f.chatID))

	assert.ErrorIs(t, f.svc.Reset(ctx, other.ID, f.chatID), ErrChatNotFound)
	assert.ErrorIs(t, f.svc.ChangeModel(ctx, other.ID, f.chatID, "BEYKUS_CHAT"), ErrChatNotFound)

	_, err = f.svc.History(ctx, f.userID, 4040)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestChangeModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ChangeModel(ctx, f.userID, f.chatID, "BEYKUS_SMALL_R"))
	sess, ok := f.sessions.Get(f.chatID)
	require.True(t, ok)
	assert.Equal(t, provider.ModelBeykusSmallR, sess.Model())

	err := f.svc.ChangeModel(ctx, f.userID, f.chatID, "gpt-4")
	assert.ErrorIs(t, err, provider.ErrUnknownModel)
	assert.Equal(t, provider.ModelBeykusSmallR, sess.Model())
}

func TestReset_WithoutSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Reset(context.Background(), f.userID, f.chatID))
	assert.Equal(t, 0, f.sessions.Len())
}

func TestReset_FailureDropsSession(t *testing.T) {
	f := newFixture(t)
	conv := &failingResetConversation{}
	f.svc.sessions = session.NewRegistry(provider.FactoryFunc(func(m provider.Model) (provider.Conversation, error) {
		return conv, nil
	}), nil)
	ctx := context.Background()

	_, err := f.svc.sessions.GetOrCreate(ctx, f.chatID, provider.DefaultModel)
	require.NoError(t, err)

	err = f.svc.Reset(ctx, f.userID, f.chatID)
	assert.ErrorIs(t, err, session.ErrSessionUnavailable)
	assert.Equal(t, 0, f.svc.sessions.Len())
}

type failingResetConversation struct{ scriptConversation }

func (c *failingResetConversation) Reinitialize() error { return assert.AnError }

func TestListModels(t *testing.T) {
	f := newFixture(t)
	models := f.svc.ListModels()
	require.Len(t, models, 3)
	assert.Equal(t, provider.ModelInfo{ID: string(provider.ModelBeykusSmall), DisplayName: "BEYKUS_SMALL"}, models[0])
}
