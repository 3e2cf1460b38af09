// ABOUTME: Tests for the OpenAI-compatible provider against a fake SSE endpoint
// ABOUTME: Verifies fragment mapping, safety blocks and history commit on completion

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompletions struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	replies  [][]string
}

func (f *fakeCompletions) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		var chunks []string
		if len(f.replies) > 0 {
			chunks = f.replies[0]
			f.replies = f.replies[1:]
		}
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func (f *fakeCompletions) request(i int) openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func textChunk(s string) string {
	b, _ := json.Marshal(s)
	return fmt.Sprintf(`{"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":%s}}]}`, b)
}

func newTestFactory(t *testing.T, fake *fakeCompletions) *OpenAIFactory {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	f, err := NewOpenAIFactory(OpenAIConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL + "/",
		Temperature: 0.8,
		TopP:        0.9,
		Prompts:     &Prompts{Default: "Be brief."},
	}, nil)
	require.NoError(t, err)
	return f
}

func TestNewOpenAIFactory_RequiresKey(t *testing.T) {
	_, err := NewOpenAIFactory(OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestOpenAI_StreamsFragments(t *testing.T) {
	fake := &fakeCompletions{replies: [][]string{{
		`{"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		textChunk("<think>hm"),
		textChunk("</think>Hello"),
		`{"id":"c","object":"chat.completion.chunk","choices":[]}`,
	}}}
	f := newTestFactory(t, fake)

	conv, err := f.NewConversation(ModelBeykusSmall)
	require.NoError(t, err)
	stream, err := conv.Send(context.Background(), "hi")
	require.NoError(t, err)
	defer stream.Close()

	var kinds []FragmentKind
	var texts []string
	for {
		frag, err := stream.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, frag.Kind)
		texts = append(texts, frag.Text)
	}

	assert.Equal(t, []FragmentKind{FragmentControl, FragmentText, FragmentText, FragmentControl}, kinds)
	assert.Equal(t, []string{"", "<think>hm", "</think>Hello", ""}, texts)

	req := fake.request(0)
	assert.Equal(t, "gemini-2.0-flash", req.Model)
	assert.True(t, req.Stream)
	assert.InDelta(t, 0.8, req.Temperature, 0.001)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "Be brief.", req.Messages[0].Content)
	assert.Equal(t, "hi", req.Messages[1].Content)
}

func TestOpenAI_CommitsHistoryOnlyWhenComplete(t *testing.T) {
	fake := &fakeCompletions{replies: [][]string{
		{textChunk("first "), textChunk("answer")},
		{textChunk("abandoned")},
		{textChunk("third")},
	}}
	f := newTestFactory(t, fake)
	conv, err := f.NewConversation(ModelBeykusChat)
	require.NoError(t, err)

	stream, err := conv.Send(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, "first answer", drain(t, stream))
	require.NoError(t, stream.Close())

	// Closed before the end: this exchange must not reach the history.
	stream, err = conv.Send(context.Background(), "two")
	require.NoError(t, err)
	_, err = stream.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	stream, err = conv.Send(context.Background(), "three")
	require.NoError(t, err)
	drain(t, stream)
	require.NoError(t, stream.Close())

	req := fake.request(2)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "one", req.Messages[1].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "first answer", req.Messages[2].Content)
	assert.Equal(t, "three", req.Messages[3].Content)
}

func TestOpenAI_ContentFilterBecomesErrorFragment(t *testing.T) {
	fake := &fakeCompletions{replies: [][]string{{
		textChunk("partial"),
		`{"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"content_filter"}]}`,
	}}}
	f := newTestFactory(t, fake)
	conv, err := f.NewConversation(ModelBeykusSmall)
	require.NoError(t, err)

	stream, err := conv.Send(context.Background(), "bad")
	require.NoError(t, err)
	defer stream.Close()

	frag, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Text("partial"), frag)

	frag, err = stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FragmentError, frag.Kind)
	assert.Equal(t, "Content blocked by API: content_filter", frag.Text)

	_, err = stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenAI_ReinitializeDropsHistory(t *testing.T) {
	fake := &fakeCompletions{replies: [][]string{{textChunk("a")}, {textChunk("b")}}}
	f := newTestFactory(t, fake)
	conv, err := f.NewConversation(ModelBeykusSmall)
	require.NoError(t, err)

	stream, err := conv.Send(context.Background(), "one")
	require.NoError(t, err)
	drain(t, stream)
	require.NoError(t, stream.Close())

	require.NoError(t, conv.Reinitialize())

	stream, err = conv.Send(context.Background(), "two")
	require.NoError(t, err)
	drain(t, stream)
	require.NoError(t, stream.Close())

	assert.Len(t, fake.request(1).Messages, 2)
}

func TestOpenAI_UpstreamErrorOnSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	f, err := NewOpenAIFactory(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	conv, err := f.NewConversation(ModelBeykusSmall)
	require.NoError(t, err)

	_, err = conv.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
