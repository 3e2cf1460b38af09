// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation and user lookup

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beykus-Y/beykusaysite/internal/store"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header    string
		wantToken string
		wantErr   string
	}{
		{"", "", "missing authorization header"},
		{"Basic abc", "", "invalid authorization header format"},
		{"Bearer ", "", "empty token"},
		{"Bearer abc.def", "abc.def", ""},
	}
	for _, tt := range tests {
		token, errMsg := extractBearerToken(tt.header)
		assert.Equal(t, tt.wantToken, token, tt.header)
		assert.Equal(t, tt.wantErr, errMsg, tt.header)
	}
}

func TestHTTPAuthMiddleware(t *testing.T) {
	users := store.NewMockStore()
	user := &store.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "x"}
	require.NoError(t, users.CreateUser(context.Background(), user))

	verifier := newTestVerifier(t, testSecret)
	valid, err := verifier.Generate(user.ID, time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Generate(user.ID, -time.Hour)
	require.NoError(t, err)
	ghost, err := verifier.Generate(user.ID+100, time.Hour)
	require.NoError(t, err)

	var got *AuthContext
	handler := HTTPAuthMiddleware(users, verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = MustFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid", "Bearer " + valid, http.StatusNoContent, ""},
		{"missing", "", http.StatusUnauthorized, "missing authorization header"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "token expired"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"unknown user", "Bearer " + ghost, http.StatusUnauthorized, "user not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, `{"error":"`+tt.wantBody+`"}`, rec.Body.String())
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, user.ID, got.UserID)
			assert.Equal(t, "ann@example.com", got.Email)
		})
	}
}

func TestFromContext_Missing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	assert.Panics(t, func() { MustFromContext(context.Background()) })
}
