// Package conversation runs chat turns and the chat operations around them.
//
// # Turns
//
// Turn answers one user message:
//
//	req, err := svc.SubmitMessage(ctx, userID, chatID, content) // recorded first
//	err = svc.Turn(ctx, req, sink)
//
// The chat's session comes from the session registry, the message goes to
// its provider conversation, and each fragment of the reply is passed
// through a thinktag.Splitter. The resulting events reach the EventSink in
// order, one Emit at a time; the next fragment is only requested after the
// sink accepted the previous events.
//
// A turn ends in one of these ways:
//
//   - the stream completes: Done is emitted, and the answer is stored if its
//     visible text is not blank, with the reasoning (or NULL) alongside
//   - the session cannot be created, the provider fails, blocks the reply or
//     produces no fragment within FragmentTimeout: one Error event, nothing
//     stored
//   - the client goes away (ctx cancelled or Emit fails): no further events,
//     nothing stored
//
// Every turn ends with an idle sweep of the registry.
//
// # Chats
//
// CreateChat, ListChats, History, Reset and ChangeModel operate on chats
// owned by the caller; a chat owned by someone else is reported as
// ErrChatNotFound.
package conversation
