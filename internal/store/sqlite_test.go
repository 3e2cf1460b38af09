// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers users, chats with previews, message persistence with reasoning, and migrations

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, s Store, email string) *User {
	t.Helper()
	user := &User{Name: "Tester", Email: email, PasswordHash: "hash"}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func strPtr(s string) *string { return &s }

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewSQLiteStore_AddsThoughtsColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")

	// A database from before reasoning was stored
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	_, err = db.Exec(`
		CREATE TABLE messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			is_bot INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("creating old schema: %v", err)
	}
	db.Close()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	var exists int
	err = store.db.QueryRow(`SELECT 1 FROM pragma_table_info('messages') WHERE name = 'thoughts'`).Scan(&exists)
	if err != nil {
		t.Fatalf("thoughts column missing after migration: %v", err)
	}
}

func TestCreateUser_LowercasesEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, store, "Ann@Example.COM")
	if user.ID == 0 {
		t.Fatal("expected user ID to be set")
	}
	if user.Email != "ann@example.com" {
		t.Errorf("Email = %q, want lowercased", user.Email)
	}

	got, err := store.GetUserByEmail(ctx, "ANN@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got.ID != user.ID || got.Name != "Tester" || got.PasswordHash != "hash" {
		t.Errorf("unexpected user: %+v", got)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	createTestUser(t, store, "dup@example.com")

	err := store.CreateUser(context.Background(), &User{Name: "Other", Email: "DUP@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetUser(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetUserByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAndGetChat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	chat := &Chat{UserID: user.ID, Title: "First", CreatedAt: created}
	if err := store.CreateChat(ctx, chat); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	got, err := store.GetChat(ctx, chat.ID)
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if got.Title != "First" || got.UserID != user.ID || !got.CreatedAt.Equal(created) {
		t.Errorf("unexpected chat: %+v", got)
	}

	if _, err := store.GetChat(ctx, chat.ID+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListChats_NewestFirstWithPreview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")
	other := createTestUser(t, store, "b@example.com")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := &Chat{UserID: user.ID, Title: "older", CreatedAt: base}
	newer := &Chat{UserID: user.ID, Title: "newer", CreatedAt: base.Add(time.Hour)}
	foreign := &Chat{UserID: other.ID, Title: "foreign", CreatedAt: base}
	for _, c := range []*Chat{older, newer, foreign} {
		if err := store.CreateChat(ctx, c); err != nil {
			t.Fatalf("CreateChat failed: %v", err)
		}
	}

	for _, content := range []string{"hello", "latest"} {
		if err := store.AppendMessage(ctx, &Message{ChatID: older.ID, UserID: user.ID, Content: content}); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}

	chats, err := store.ListChats(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].Title != "newer" || chats[1].Title != "older" {
		t.Errorf("wrong order: %q, %q", chats[0].Title, chats[1].Title)
	}
	if chats[0].LastMessage != nil {
		t.Errorf("expected no preview for empty chat, got %q", *chats[0].LastMessage)
	}
	if chats[1].LastMessage == nil || *chats[1].LastMessage != "latest" {
		t.Errorf("expected preview %q, got %v", "latest", chats[1].LastMessage)
	}
}

func TestAppendMessage_RoundTripsThoughts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, store, "a@example.com")
	chat := &Chat{UserID: user.ID, Title: "t"}
	if err := store.CreateChat(ctx, chat); err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}

	msgs := []*Message{
		{ChatID: chat.ID, UserID: user.ID, Content: "question"},
		{ChatID: chat.ID, UserID: user.ID, Content: "answer", Thoughts: strPtr("step one\n\nstep two"), IsBot: true},
		{ChatID: chat.ID, UserID: user.ID, Content: "plain answer", Thoughts: strPtr("   "), IsBot: true},
	}
	for _, m := range msgs {
		if err := store.AppendMessage(ctx, m); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if m.ID == 0 {
			t.Fatal("expected message ID to be set")
		}
	}

	got, err := store.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].Content != "question" || got[0].IsBot || got[0].Thoughts != nil {
		t.Errorf("unexpected first message: %+v", got[0])
	}
	if !got[1].IsBot || got[1].Thoughts == nil || *got[1].Thoughts != "step one\n\nstep two" {
		t.Errorf("unexpected second message: %+v", got[1])
	}
	if got[2].Thoughts != nil {
		t.Errorf("blank thoughts should be stored as NULL, got %q", *got[2].Thoughts)
	}
}

func TestAppendMessage_UnknownChat(t *testing.T) {
	store := newTestStore(t)
	user := createTestUser(t, store, "a@example.com")

	err := store.AppendMessage(context.Background(), &Message{ChatID: 404, UserID: user.ID, Content: "x"})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}
