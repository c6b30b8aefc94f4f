// Package auth provides account registration, login, and opaque API token
// verification.
//
// # Overview
//
// Accounts are identified by email and carry a system-level role tag: Admin
// for users who created an organization, Employee for users who joined one
// through an invitation. Passwords are stored as bcrypt hashes. Sessions are
// opaque bearer tokens; only the SHA256 hash of a token is persisted and the
// plaintext is returned exactly once at issuance.
//
// # Token Flow
//
// Issuance:
//
//	generator := auth.NewTokenGenerator()
//	plaintext, hash, prefix, err := generator.GenerateToken()
//	// plaintext: od_xxx (returned to the client, never stored)
//	// hash: SHA256(plaintext) (stored in api_tokens)
//
// Verification:
//
//	verifier := auth.NewTokenVerifier(auth.NewTokenStore(db))
//	userID, err := verifier.Verify(ctx, credential)
//	// ErrNoCredential when the request carried no token,
//	// ErrInvalidToken when it is malformed, unknown, expired or revoked.
//
// Verification is pure credential checking: it yields a user id and never
// consults roles or permissions. Authorization lives in pkg/rbac.
//
// # Related Packages
//
//   - pkg/rbac: role classification and permission resolution
//   - pkg/orgs: organization, department, and employee management
//   - pkg/middleware: HTTP authentication middleware
package auth
