// ABOUTME: Tests that MockStore behaves like SQLiteStore where callers depend on it
// ABOUTME: Runs the same scenarios against both implementations

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("mock", func(t *testing.T) { fn(t, NewMockStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestStore(t)) })
}

func TestStores_DuplicateEmail(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		createTestUser(t, s, "x@example.com")
		err := s.CreateUser(context.Background(), &User{Name: "y", Email: "X@EXAMPLE.COM", PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})
}

func TestStores_ChatOrderingAndMessages(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user := createTestUser(t, s, "x@example.com")
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		first := &Chat{UserID: user.ID, Title: "first", CreatedAt: base}
		second := &Chat{UserID: user.ID, Title: "second", CreatedAt: base}
		require.NoError(t, s.CreateChat(ctx, first))
		require.NoError(t, s.CreateChat(ctx, second))

		require.NoError(t, s.AppendMessage(ctx, &Message{ChatID: first.ID, UserID: user.ID, Content: "a"}))
		require.NoError(t, s.AppendMessage(ctx, &Message{ChatID: first.ID, UserID: user.ID, Content: "b", IsBot: true}))

		chats, err := s.ListChats(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, chats, 2)
		// Same timestamp: the later chat comes first.
		assert.Equal(t, "second", chats[0].Title)
		require.NotNil(t, chats[1].LastMessage)
		assert.Equal(t, "b", *chats[1].LastMessage)

		msgs, err := s.ListMessages(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "a", msgs[0].Content)
		assert.True(t, msgs[1].IsBot)
	})
}

func TestMockStore_AppendErr(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	user := createTestUser(t, s, "x@example.com")
	chat := &Chat{UserID: user.ID, Title: "t"}
	require.NoError(t, s.CreateChat(ctx, chat))

	s.AppendErr = errors.New("disk full")
	err := s.AppendMessage(ctx, &Message{ChatID: chat.ID, UserID: user.ID, Content: "x"})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 0, s.MessageCount(chat.ID))
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()
	user := createTestUser(t, s, "x@example.com")

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tester", again.Name)
}
