// ABOUTME: Deterministic local provider that echoes the user's message
// ABOUTME: Streams a reasoning block plus the echo in small fragments for development and tests

package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// DefaultLoopbackChunkSize is the fragment size in bytes when none is set.
const DefaultLoopbackChunkSize = 5

// LoopbackFactory builds echoing conversations. Fragments are cut at byte
// boundaries, so markers and multi-byte characters regularly straddle them.
type LoopbackFactory struct {
	ChunkSize int
	// Delay is slept before every fragment.
	Delay time.Duration
}

// NewConversation returns a loopback conversation for model.
func (f *LoopbackFactory) NewConversation(model Model) (Conversation, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrNoConversation, ErrUnknownModel, model)
	}
	size := f.ChunkSize
	if size <= 0 {
		size = DefaultLoopbackChunkSize
	}
	return &loopbackConversation{model: model, chunkSize: size, delay: f.Delay}, nil
}

type loopbackConversation struct {
	model     Model
	chunkSize int
	delay     time.Duration

	mu    sync.Mutex
	turns int
}

func (c *loopbackConversation) Model() Model {
	return c.model
}

func (c *loopbackConversation) Reinitialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = 0
	return nil
}

// Turns reports how many replies completed since the last reinitialization.
func (c *loopbackConversation) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}

func (c *loopbackConversation) Send(ctx context.Context, text string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	turn := c.turns + 1
	c.mu.Unlock()

	reply := fmt.Sprintf("<think>Turn %d on %s. Echoing the message back.</think>[loopback] %s",
		turn, c.model.DisplayName(), strings.TrimSpace(text))
	return &loopbackStream{conv: c, reply: reply, chunkSize: c.chunkSize, delay: c.delay}, nil
}

type loopbackStream struct {
	conv      *loopbackConversation
	reply     string
	offset    int
	chunkSize int
	delay     time.Duration
	done      bool
}

func (s *loopbackStream) Next(ctx context.Context) (Fragment, error) {
	if s.done {
		return Fragment{}, io.EOF
	}
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return Fragment{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Fragment{}, err
	}

	if s.offset >= len(s.reply) {
		s.done = true
		s.conv.mu.Lock()
		s.conv.turns++
		s.conv.mu.Unlock()
		return Fragment{}, io.EOF
	}
	end := min(s.offset+s.chunkSize, len(s.reply))
	frag := Text(s.reply[s.offset:end])
	s.offset = end
	return frag, nil
}

func (s *loopbackStream) Close() error {
	s.done = true
	return nil
}
