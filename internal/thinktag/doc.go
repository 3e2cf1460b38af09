// Package thinktag separates a model's visible answer from the reasoning it
// wraps in <think>...</think> blocks, while the reply is still streaming.
//
// # Scanning
//
// A Splitter is fed provider fragments in order. Outside a block, text is
// emitted as Visible events; inside, it is buffered until the closing marker
// arrives and then emitted as one trimmed Thought. Blank blocks produce no
// event. Only the shortest tail that could still begin a marker (or finish a
// multi-byte character) is held back between fragments, so the events for a
// reply are the same however it was cut up:
//
//	s := thinktag.New(thinktag.DefaultMarkers)
//	s.Feed(provider.Text("Hello <th"))          // Visible("Hello ")
//	s.Feed(provider.Text("ink>reasoning</thi")) // nothing yet
//	s.Feed(provider.Text("nk> world"))          // Thought("reasoning"), Visible(" world")
//	s.Finish()
//	s.Result() // {Visible: "Hello  world", Reasoning: "reasoning"}
//
// # End of stream
//
// Finish flushes held-back text. A block that was never closed is not lost:
// its text is emitted as a final Thought and kept in the reasoning.
//
// # Failures
//
// Control fragments are skipped. An error fragment produces a single Error
// event, after which the Splitter is Failed and ignores further input.
package thinktag
