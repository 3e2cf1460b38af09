// ABOUTME: OpenAI-compatible chat provider (Gemini's OpenAI endpoint by default)
// ABOUTME: Keeps per-conversation history and adapts streamed chunks into Fragments

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultGeminiBaseURL is Gemini's OpenAI-compatible API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// ErrMissingAPIKey is returned when the OpenAI provider has no credentials.
var ErrMissingAPIKey = errors.New("provider api key is required")

// OpenAIConfig configures NewOpenAIFactory.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// RequestTimeout bounds the wait for response headers. The body of a
	// streamed reply is bounded per fragment by the caller instead.
	RequestTimeout time.Duration
	Temperature    float32
	TopP           float32
	Prompts        *Prompts
}

// OpenAIFactory builds conversations backed by one shared API client.
type OpenAIFactory struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIFactory creates a factory talking to cfg.BaseURL.
func NewOpenAIFactory(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIFactory, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.RequestTimeout > 0 {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = cfg.RequestTimeout
		clientCfg.HTTPClient = &http.Client{Transport: transport}
	}

	return &OpenAIFactory{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With("component", "provider", "provider", "openai"),
	}, nil
}

// NewConversation starts an empty history for model.
func (f *OpenAIFactory) NewConversation(model Model) (Conversation, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrNoConversation, ErrUnknownModel, model)
	}
	c := &openAIConversation{
		client: f.client,
		model:  model,
		cfg:    f.cfg,
		logger: f.logger.With("model", string(model)),
	}
	c.history = c.initialHistory()
	return c, nil
}

type openAIConversation struct {
	client *openai.Client
	model  Model
	cfg    OpenAIConfig
	logger *slog.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

func (c *openAIConversation) Model() Model {
	return c.model
}

func (c *openAIConversation) initialHistory() []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: c.cfg.Prompts.For(c.model)},
	}
}

func (c *openAIConversation) Reinitialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = c.initialHistory()
	return nil
}

func (c *openAIConversation) Send(ctx context.Context, text string) (Stream, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}

	c.mu.Lock()
	messages := make([]openai.ChatCompletionMessage, 0, len(c.history)+1)
	messages = append(messages, c.history...)
	messages = append(messages, user)
	c.mu.Unlock()

	req := openai.ChatCompletionRequest{
		Model:       string(c.model),
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		Stream:      true,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	raw, err := c.client.CreateChatCompletionStream(streamCtx, req)
	if err != nil {
		cancel()
		c.logger.Error("failed to start completion stream", "error", err)
		return nil, fmt.Errorf("starting completion stream: %w", describeAPIError(err))
	}

	c.logger.Debug("completion stream started", "history", len(messages))
	return &openAIStream{
		conv:   c,
		raw:    raw,
		cancel: cancel,
		user:   user,
	}, nil
}

// commit appends a completed exchange to the history.
func (c *openAIConversation) commit(user openai.ChatCompletionMessage, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, user, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: reply,
	})
}

type recvResult struct {
	resp openai.ChatCompletionStreamResponse
	err  error
}

type openAIStream struct {
	conv   *openAIConversation
	raw    *openai.ChatCompletionStream
	cancel context.CancelFunc
	user   openai.ChatCompletionMessage

	reply   strings.Builder
	pending chan recvResult
	done    bool
}

// Next receives one chunk. Only one Recv is ever outstanding, and it is
// started only when the caller asks for the next fragment.
func (s *openAIStream) Next(ctx context.Context) (Fragment, error) {
	if s.done {
		return Fragment{}, io.EOF
	}
	if s.pending == nil {
		ch := make(chan recvResult, 1)
		go func() {
			resp, err := s.raw.Recv()
			ch <- recvResult{resp: resp, err: err}
		}()
		s.pending = ch
	}

	select {
	case r := <-s.pending:
		s.pending = nil
		return s.convert(r)
	case <-ctx.Done():
		// Unblocks the outstanding Recv; the stream is unusable afterwards.
		s.cancel()
		return Fragment{}, ctx.Err()
	}
}

func (s *openAIStream) convert(r recvResult) (Fragment, error) {
	if errors.Is(r.err, io.EOF) {
		s.done = true
		s.conv.commit(s.user, s.reply.String())
		return Fragment{}, io.EOF
	}
	if r.err != nil {
		s.done = true
		if errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded) {
			return Fragment{}, r.err
		}
		return Failure(describeAPIError(r.err).Error()), nil
	}

	if len(r.resp.Choices) == 0 {
		return Fragment{}, nil
	}
	choice := r.resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		s.done = true
		return Failure("Content blocked by API: " + string(choice.FinishReason)), nil
	}
	if choice.Delta.Content == "" {
		return Fragment{}, nil
	}
	s.reply.WriteString(choice.Delta.Content)
	return Text(choice.Delta.Content), nil
}

func (s *openAIStream) Close() error {
	s.cancel()
	return s.raw.Close()
}

// describeAPIError reduces API errors to their message so clients do not see
// raw response bodies.
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("upstream error (%d): %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("upstream request failed (%d)", reqErr.HTTPStatusCode)
	}
	return err
}
