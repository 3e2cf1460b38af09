// Package gateway serves the beykus chat HTTP API.
//
// # Overview
//
// Gateway owns the store, the session registry, the conversation service
// and the HTTP server. New wires them together from a config.Config and
// Run serves until its context is cancelled.
//
// # HTTP API
//
// Public endpoints:
//
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (pings the store)
//   - GET /metrics - Prometheus metrics, when enabled
//   - GET /api/models - Selectable models
//   - POST /api/auth/register - Create an account
//   - POST /api/auth/login - Exchange credentials for a bearer token
//
// Endpoints that require "Authorization: Bearer <token>":
//
//   - GET /api/auth/me - The current user
//   - GET /api/chats - The user's chats, newest first
//   - POST /api/chats - Create a chat
//   - GET /api/chats/{id}/messages - Chat history with rendered HTML
//   - POST /api/chats/{id}/messages - Send a message, streams the answer
//   - POST /api/chats/{id}/reset - Restart the model session
//   - POST /api/chats/{id}/model - Switch the chat's model
//
// Errors are JSON objects of the form {"error": "message"}. Chats owned
// by another user answer 404.
//
// # Streaming
//
// POST /api/chats/{id}/messages answers with text/event-stream. Each record
// is one "data:" line holding a JSON object:
//
//	data: {"content":"Hello","thoughts":null,"error":null}
//	data: {"content":null,"thoughts":"The user greets me.","error":null}
//	data: {"done":true,"message_id":42}
//
// A failed turn sends a single record with "error" set and no done record.
// message_id is null when the answer was empty or could not be stored.
package gateway
