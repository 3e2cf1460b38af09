// ABOUTME: Tests for the reasoning splitter
// ABOUTME: Covers split markers, chunking invariance, salvage of open blocks and error fragments

package thinktag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beykus-Y/beykusaysite/internal/provider"
)

func run(s *Splitter, fragments ...provider.Fragment) []Event {
	var events []Event
	for _, f := range fragments {
		events = append(events, s.Feed(f)...)
	}
	return append(events, s.Finish()...)
}

func texts(parts ...string) []provider.Fragment {
	frags := make([]provider.Fragment, len(parts))
	for i, p := range parts {
		frags[i] = provider.Text(p)
	}
	return frags
}

// bytewise cuts s into single-byte fragments.
func bytewise(s string) []provider.Fragment {
	frags := make([]provider.Fragment, len(s))
	for i := 0; i < len(s); i++ {
		frags[i] = provider.Text(s[i : i+1])
	}
	return frags
}

func TestSplitter_MarkersSplitAcrossFragments(t *testing.T) {
	s := New(DefaultMarkers)
	events := run(s, texts("Hello <th", "ink>reasoning</thi", "nk> world")...)

	assert.Equal(t, []Event{
		Visible("Hello "),
		Thought("reasoning"),
		Visible(" world"),
	}, events)
	assert.Equal(t, Result{Visible: "Hello  world", Reasoning: "reasoning"}, s.Result())
}

func TestSplitter_SeveralBlocksInOneFragment(t *testing.T) {
	s := New(DefaultMarkers)
	events := run(s, texts("<think> first </think>A<think>\nsecond\n</think>B")...)

	assert.Equal(t, []Event{
		Thought("first"),
		Visible("A"),
		Thought("second"),
		Visible("B"),
	}, events)
	assert.Equal(t, "first\n\nsecond", s.Result().Reasoning)
	assert.Equal(t, "AB", s.Result().Visible)
}

func TestSplitter_BlankBlockIsDropped(t *testing.T) {
	s := New(DefaultMarkers)
	events := run(s, texts("<think>  \n </think>answer")...)

	assert.Equal(t, []Event{Visible("answer")}, events)
	assert.Empty(t, s.Result().Reasoning)
}

func TestSplitter_UnterminatedBlockIsSalvaged(t *testing.T) {
	s := New(DefaultMarkers)
	events := run(s, texts("Answer <think>still thin", "king")...)

	assert.Equal(t, []Event{
		Visible("Answer "),
		Thought("still thinking"),
	}, events)
	assert.Equal(t, Result{Visible: "Answer ", Reasoning: "still thinking"}, s.Result())
}

func TestSplitter_UnterminatedBlockEndingInPartialClose(t *testing.T) {
	s := New(DefaultMarkers)
	run(s, texts("<think>abc</th")...)

	assert.Equal(t, "abc</th", s.Result().Reasoning)
	assert.Empty(t, s.Result().Visible)
}

func TestSplitter_PartialOpenMarkerAtEndIsVisible(t *testing.T) {
	s := New(DefaultMarkers)
	events := run(s, texts("a < b, see <thi")...)

	assert.Equal(t, []Event{Visible("a < b, see "), Visible("<thi")}, events)
	assert.Equal(t, "a < b, see <thi", s.Result().Visible)
}

func TestSplitter_StrayCloseMarkerIsVisible(t *testing.T) {
	s := New(DefaultMarkers)
	run(s, texts("x</think>y")...)

	assert.Equal(t, "x</think>y", s.Result().Visible)
}

func TestSplitter_ControlFragmentsIgnored(t *testing.T) {
	s := New(DefaultMarkers)
	events := run(s,
		provider.Fragment{},
		provider.Text("<think>r</think>"),
		provider.Fragment{Kind: provider.FragmentControl, Text: "ping"},
		provider.Text("v"),
	)

	assert.Equal(t, []Event{Thought("r"), Visible("v")}, events)
	assert.False(t, s.Failed())
}

func TestSplitter_ErrorFragmentEndsReply(t *testing.T) {
	s := New(DefaultMarkers)
	events := s.Feed(provider.Text("partial <th"))
	assert.Equal(t, []Event{Visible("partial ")}, events)

	events = s.Feed(provider.Failure("Content blocked by API: SAFETY"))
	assert.Equal(t, []Event{Error("Content blocked by API: SAFETY")}, events)
	assert.True(t, s.Failed())

	assert.Empty(t, s.Feed(provider.Text("more")))
	assert.Empty(t, s.Finish())
	assert.Equal(t, "partial ", s.Result().Visible)
}

func TestSplitter_FinishIsIdempotent(t *testing.T) {
	s := New(DefaultMarkers)
	s.Feed(provider.Text("<think>x"))
	require.Len(t, s.Finish(), 1)
	assert.Empty(t, s.Finish())
	assert.Empty(t, s.Feed(provider.Text("late")))
}

func TestSplitter_CustomMarkers(t *testing.T) {
	s := New(Markers{Open: "[[", Close: "]]"})
	run(s, texts("a[", "[b]", "]c")...)

	assert.Equal(t, Result{Visible: "ac", Reasoning: "b"}, s.Result())
}

func TestSplitter_EmptyMarkersFallBackToDefault(t *testing.T) {
	s := New(Markers{})
	run(s, texts("<think>r</think>v")...)

	assert.Equal(t, Result{Visible: "v", Reasoning: "r"}, s.Result())
}

var invarianceInputs = []string{
	"Hello <think>reasoning</think> world",
	"<think> a </think><think>b</think>tail",
	"Привет! <think>Думаю… 🤔</think>Ответ ✓",
	"no tags at all",
	"<think>never closed 漢字",
	"a < b <thin and </think> stray",
	"<<think>x</think>>",
	"<think></think>",
	"",
}

func TestSplitter_ChunkingInvariance(t *testing.T) {
	for _, input := range invarianceInputs {
		whole := New(DefaultMarkers)
		run(whole, provider.Text(input))
		want := whole.Result()

		bytes := New(DefaultMarkers)
		run(bytes, bytewise(input)...)
		assert.Equal(t, want, bytes.Result(), "single-byte fragments of %q", input)

		// Every two-way split point.
		for i := 0; i <= len(input); i++ {
			s := New(DefaultMarkers)
			run(s, texts(input[:i], input[i:])...)
			assert.Equal(t, want, s.Result(), "split of %q at %d", input, i)
		}
	}
}

func TestSplitter_EventsAreValidUTF8(t *testing.T) {
	for _, input := range invarianceInputs {
		s := New(DefaultMarkers)
		for _, ev := range run(s, bytewise(input)...) {
			assert.True(t, utf8.ValidString(ev.Text), "event %q from %q", ev.Text, input)
		}
	}
}

func TestSplitter_EventsReassembleAccumulators(t *testing.T) {
	input := "pre <think>one</think> mid <think>two</think> post"
	s := New(DefaultMarkers)
	events := run(s, bytewise(input)...)

	var visible strings.Builder
	var thoughts []string
	for _, ev := range events {
		switch ev.Kind {
		case KindVisible:
			visible.WriteString(ev.Text)
		case KindThought:
			thoughts = append(thoughts, ev.Text)
		}
	}
	assert.Equal(t, s.Result().Visible, visible.String())
	assert.Equal(t, s.Result().Reasoning, strings.Join(thoughts, "\n\n"))
	assert.Equal(t, "pre  mid  post", visible.String())
}

func TestPartialMarker(t *testing.T) {
	assert.Equal(t, 3, partialMarker("abc<th", "<think>"))
	assert.Equal(t, 1, partialMarker("abc<", "<think>"))
	assert.Equal(t, 0, partialMarker("abc", "<think>"))
	// A complete marker is not a proper prefix.
	assert.Equal(t, 0, partialMarker("<think>", "<think>"))
	assert.Equal(t, 5, partialMarker("x</thi", "</think>"))
}

func TestIncompleteRune(t *testing.T) {
	euro := "€" // 3 bytes
	assert.Equal(t, 0, incompleteRune("abc"))
	assert.Equal(t, 0, incompleteRune("a"+euro))
	assert.Equal(t, 1, incompleteRune("a"+euro[:1]))
	assert.Equal(t, 2, incompleteRune("a"+euro[:2]))
	assert.Equal(t, 0, incompleteRune(""))
}
