// Package auth provides user accounts and bearer-token authentication.
//
// Passwords are stored as Argon2id PHC strings. Access tokens are HS256
// JWTs whose subject is the numeric user id and whose jti lets a token be
// revoked on logout before it expires. Revoked ids live in the
// revoked_tokens table until the token would have expired anyway.
package auth
