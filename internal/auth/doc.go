// Package auth authenticates API users.
//
// Users log in with email and password (bcrypt hashes, see HashPassword) and
// receive an HS256 JWT whose subject is their numeric user id. The token is
// sent as "Authorization: Bearer <token>"; HTTPAuthMiddleware verifies it,
// loads the user and stores an AuthContext in the request context, which
// handlers read back with FromContext.
package auth
