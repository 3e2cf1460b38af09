// ABOUTME: HTTP client for the beykus-gateway chat API
// ABOUTME: Wraps chat endpoints and decodes the message event stream

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// chat is the JSON form of a chat returned by the gateway.
type chat struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	CreatedAt   string `json:"created_at"`
	LastMessage string `json:"last_message"`
}

// message is one stored chat message.
type message struct {
	ID       int64   `json:"id"`
	Content  string  `json:"content"`
	Thoughts *string `json:"thoughts"`
	IsBot    bool    `json:"is_bot"`
}

// modelInfo describes a selectable model.
type modelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// streamEvent is one record of the message stream. Exactly one of the
// pointer fields is set, or Done is true.
type streamEvent struct {
	Content   *string `json:"content"`
	Thoughts  *string `json:"thoughts"`
	Error     *string `json:"error"`
	Done      bool    `json:"done"`
	MessageID *int64  `json:"message_id"`
}

// apiError is an error response from the gateway.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return e.Message
}

type client struct {
	server string
	token  string
	http   *http.Client
}

func newClient(server, token string) *client {
	return &client{server: strings.TrimRight(server, "/"), token: token, http: http.DefaultClient}
}

// do sends a JSON request and returns the response if it has status 2xx.
func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		apiErr := &apiError{Status: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
			apiErr.Message = errResp.Error
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *client) getJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func (c *client) login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.getJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

func (c *client) listChats(ctx context.Context) ([]chat, error) {
	var chats []chat
	return chats, c.getJSON(ctx, http.MethodGet, "/api/chats", nil, &chats)
}

func (c *client) createChat(ctx context.Context, title string) (chat, error) {
	var body any
	if title != "" {
		body = map[string]string{"title": title}
	}
	var ch chat
	return ch, c.getJSON(ctx, http.MethodPost, "/api/chats", body, &ch)
}

func (c *client) history(ctx context.Context, chatID int64) ([]message, error) {
	var msgs []message
	return msgs, c.getJSON(ctx, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", chatID), nil, &msgs)
}

func (c *client) models(ctx context.Context) ([]modelInfo, error) {
	var resp struct {
		Models []modelInfo `json:"models"`
	}
	return resp.Models, c.getJSON(ctx, http.MethodGet, "/api/models", nil, &resp)
}

func (c *client) changeModel(ctx context.Context, chatID int64, model string) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	err := c.getJSON(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/model", chatID), map[string]string{"model": model}, &resp)
	return resp.Name, err
}

func (c *client) reset(ctx context.Context, chatID int64) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/reset", chatID), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// send posts a message and calls handle for every stream record until the
// stream ends.
func (c *client) send(ctx context.Context, chatID int64, content string, handle func(streamEvent)) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", chatID), map[string]string{"content": content})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return readStream(ctx, resp.Body, handle)
}

// readStream decodes "data:" records. Other SSE fields are ignored.
func readStream(ctx context.Context, body io.Reader, handle func(streamEvent)) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ok := strings.CutPrefix(sc.Text(), "data:")
		if !ok {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); err != nil {
			return fmt.Errorf("parsing event data: %w", err)
		}
		handle(ev)
		if ev.Done || ev.Error != nil {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("stream ended before the answer was complete")
}
