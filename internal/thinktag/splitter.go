// ABOUTME: Incremental splitter separating visible answer text from reasoning blocks
// ABOUTME: Output is independent of how the upstream reply was cut into fragments

package thinktag

import (
	"strings"
	"unicode/utf8"

	"github.com/Beykus-Y/beykusaysite/internal/provider"
)

// Markers delimit a reasoning block.
type Markers struct {
	Open  string
	Close string
}

// DefaultMarkers are the tags reasoning models wrap their thoughts in.
var DefaultMarkers = Markers{Open: "<think>", Close: "</think>"}

// reasoningSeparator joins reasoning blocks in the accumulated result.
const reasoningSeparator = "\n\n"

type mode int

const (
	outside mode = iota
	inside
)

// Result is the accumulated output of a turn.
type Result struct {
	Visible   string
	Reasoning string
}

// Splitter turns a sequence of fragments into Visible and Thought events.
// A Splitter serves one reply and is not safe for concurrent use.
type Splitter struct {
	markers Markers
	mode    mode
	// carry holds the tail of the last fragment that may be the start of a
	// marker or of a multi-byte character.
	carry   string
	pending strings.Builder
	visible strings.Builder
	blocks  []string

	failed   bool
	finished bool
}

// New returns a Splitter for markers. Empty markers fall back to DefaultMarkers.
func New(markers Markers) *Splitter {
	if markers.Open == "" || markers.Close == "" {
		markers = DefaultMarkers
	}
	return &Splitter{markers: markers}
}

// Feed consumes one fragment and returns the events it completes.
// Control fragments produce nothing. An error fragment produces a single
// Error event and ends the splitter.
func (s *Splitter) Feed(f provider.Fragment) []Event {
	if s.failed || s.finished {
		return nil
	}
	switch f.Kind {
	case provider.FragmentText:
	case provider.FragmentError:
		s.failed = true
		s.carry = ""
		return []Event{Error(f.Text)}
	default:
		return nil
	}
	if f.Text == "" {
		return nil
	}
	return s.scan(s.carry + f.Text)
}

func (s *Splitter) scan(buf string) []Event {
	var events []Event
	s.carry = ""
	for buf != "" {
		if s.mode == outside {
			if i := strings.Index(buf, s.markers.Open); i >= 0 {
				events = s.emitVisible(events, buf[:i])
				buf = buf[i+len(s.markers.Open):]
				s.mode = inside
				continue
			}
			keep := partialMarker(buf, s.markers.Open)
			if keep == 0 {
				keep = incompleteRune(buf)
			}
			cut := len(buf) - keep
			events = s.emitVisible(events, buf[:cut])
			s.carry = buf[cut:]
			return events
		}

		if i := strings.Index(buf, s.markers.Close); i >= 0 {
			s.pending.WriteString(buf[:i])
			events = s.closeBlock(events)
			buf = buf[i+len(s.markers.Close):]
			s.mode = outside
			continue
		}
		cut := len(buf) - partialMarker(buf, s.markers.Close)
		s.pending.WriteString(buf[:cut])
		s.carry = buf[cut:]
		return events
	}
	return events
}

// Finish flushes whatever the last fragment left behind. A reply that ends
// inside a reasoning block keeps that block as reasoning.
func (s *Splitter) Finish() []Event {
	if s.failed || s.finished {
		return nil
	}
	s.finished = true
	carry := s.carry
	s.carry = ""
	if s.mode == outside {
		return s.emitVisible(nil, carry)
	}
	s.pending.WriteString(carry)
	s.mode = outside
	return s.closeBlock(nil)
}

// Result returns the visible text and the reasoning blocks seen so far.
func (s *Splitter) Result() Result {
	return Result{
		Visible:   s.visible.String(),
		Reasoning: strings.Join(s.blocks, reasoningSeparator),
	}
}

// Failed reports whether an error fragment ended the reply.
func (s *Splitter) Failed() bool {
	return s.failed
}

func (s *Splitter) emitVisible(events []Event, text string) []Event {
	if text == "" {
		return events
	}
	s.visible.WriteString(text)
	return append(events, Visible(text))
}

func (s *Splitter) closeBlock(events []Event) []Event {
	text := strings.TrimSpace(s.pending.String())
	s.pending.Reset()
	if text == "" {
		return events
	}
	s.blocks = append(s.blocks, text)
	return append(events, Thought(text))
}

// partialMarker returns the length of the longest suffix of buf that is a
// proper prefix of marker.
func partialMarker(buf, marker string) int {
	for n := min(len(buf), len(marker)-1); n > 0; n-- {
		if strings.HasSuffix(buf, marker[:n]) {
			return n
		}
	}
	return 0
}

// incompleteRune returns the length of a truncated UTF-8 sequence at the end
// of buf, or 0 if buf ends on a character boundary.
func incompleteRune(buf string) int {
	for n := 1; n < utf8.UTFMax && n <= len(buf); n++ {
		b := buf[len(buf)-n]
		if b < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(b) {
			if utf8.FullRuneInString(buf[len(buf)-n:]) {
				return 0
			}
			return n
		}
	}
	return 0
}
