// ABOUTME: Server-Sent Events sink for chat turns
// ABOUTME: Writes one data record per event in the content/thoughts/error format and flushes it

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Beykus-Y/beykusaysite/internal/thinktag"
)

// streamRecord is the JSON payload of a turn event. Absent fields are null.
type streamRecord struct {
	Content  *string `json:"content"`
	Thoughts *string `json:"thoughts"`
	Error    *string `json:"error"`
}

// doneRecord closes a completed turn.
type doneRecord struct {
	Done      bool   `json:"done"`
	MessageID *int64 `json:"message_id"`
}

// sseSink writes turn events to an event stream response.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// setSSEHeaders prepares w for an event stream.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Emit writes ev as one "data:" record. It fails once the client is gone.
func (s *sseSink) Emit(ctx context.Context, ev thinktag.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var payload any
	switch ev.Kind {
	case thinktag.KindVisible:
		payload = streamRecord{Content: &ev.Text}
	case thinktag.KindThought:
		payload = streamRecord{Thoughts: &ev.Text}
	case thinktag.KindError:
		payload = streamRecord{Error: &ev.Text}
	case thinktag.KindDone:
		rec := doneRecord{Done: true}
		if ev.MessageID != 0 {
			rec.MessageID = &ev.MessageID
		}
		payload = rec
	default:
		return fmt.Errorf("unknown event kind %v", ev.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
