// ABOUTME: Output events of a chat turn as delivered to clients
// ABOUTME: Visible text, reasoning, a terminal error, or completion

package thinktag

// Kind discriminates Event.
type Kind int

const (
	KindVisible Kind = iota
	KindThought
	KindError
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindVisible:
		return "visible"
	case KindThought:
		return "thought"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is one ordered output of a turn. An Error event is the last event
// of its turn.
type Event struct {
	Kind Kind
	// Text is the visible text, the reasoning block, or the error message.
	Text string
	// MessageID is set on Done when the answer was stored.
	MessageID int64
}

func Visible(text string) Event { return Event{Kind: KindVisible, Text: text} }

func Thought(text string) Event { return Event{Kind: KindThought, Text: text} }

func Error(msg string) Event { return Event{Kind: KindError, Text: msg} }

// Done marks a completed turn; messageID is 0 when nothing was stored.
func Done(messageID int64) Event { return Event{Kind: KindDone, MessageID: messageID} }
