// ABOUTME: Upstream model abstraction: conversations that stream reply fragments
// ABOUTME: Defines Fragment, Stream, Conversation and Factory used by the session layer

package provider

import (
	"context"
	"errors"
)

// ErrNoConversation is returned by a Factory that cannot build a conversation.
var ErrNoConversation = errors.New("conversation unavailable")

// FragmentKind classifies a piece of an upstream reply.
type FragmentKind int

const (
	// FragmentControl carries no user-facing content: keep-alives, usage-only
	// chunks, role announcements. Consumers skip it.
	FragmentControl FragmentKind = iota
	// FragmentText is a piece of the model's reply text.
	FragmentText
	// FragmentError reports a provider-side failure such as a safety block.
	// It ends the reply.
	FragmentError
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentText:
		return "text"
	case FragmentError:
		return "error"
	default:
		return "control"
	}
}

// Fragment is one pull from an upstream Stream.
type Fragment struct {
	Kind FragmentKind
	// Text is the reply text for FragmentText and the failure message for
	// FragmentError.
	Text string
}

// Text returns a text fragment.
func Text(s string) Fragment {
	return Fragment{Kind: FragmentText, Text: s}
}

// Failure returns an error fragment with the given message.
func Failure(msg string) Fragment {
	return Fragment{Kind: FragmentError, Text: msg}
}

// Stream is a single in-flight reply. Next blocks until the next fragment is
// available and returns io.EOF once the reply is complete. Provider-side
// failures arrive in-band as FragmentError; a non-nil error other than io.EOF
// means ctx ended or the stream was closed.
type Stream interface {
	Next(ctx context.Context) (Fragment, error)
	Close() error
}

// Conversation is a provider-owned chat history bound to one model.
// Send appends the user text and streams the reply; the reply joins the
// history only once it has been read to the end.
type Conversation interface {
	Model() Model
	Send(ctx context.Context, text string) (Stream, error)
	// Reinitialize drops all history, keeping the model and system prompt.
	Reinitialize() error
}

// Factory creates conversations for a model.
type Factory interface {
	NewConversation(model Model) (Conversation, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(model Model) (Conversation, error)

// NewConversation calls f(model).
func (f FactoryFunc) NewConversation(model Model) (Conversation, error) {
	return f(model)
}
