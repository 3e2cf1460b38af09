// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - User: registered account, unique lowercased email, bcrypt password hash
//   - Chat: conversation owned by one user
//   - Message: user or bot message; bot messages may carry the model's reasoning
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite (pure Go) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC 3339 text in UTC. Message order is insertion
// order (the autoincrement id), not the timestamp.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateEmail: the email is already registered
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
// for tests against real SQLite.
package store
