// Package auth provides staff authentication for the MedEdge API.
//
// Credentials are Argon2id-hashed (PHC string format) and verified on
// login; successful logins receive a short-lived HS256 JWT carrying the
// account's role. Accounts live in SQLite. A first-boot seed creates the
// initial admin account with a random one-time password.
package auth
