package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies orgdeck tokens
	TokenPrefix = "od_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token.
// Format: od_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// First 8 chars after "od_" identify the token in listings
	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenStore persists issued tokens
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a new token store
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// CreateToken inserts a token record
func (s *TokenStore) CreateToken(ctx context.Context, token *APIToken) error {
	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		token.UserID,
		token.TokenHash,
		token.TokenPrefix,
		now,
		token.ExpiresAt,
	).Scan(&token.ID)

	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	token.CreatedAt = now
	return nil
}

// GetTokenByHash retrieves an unrevoked token by its hash
func (s *TokenStore) GetTokenByHash(ctx context.Context, tokenHash string) (*APIToken, error) {
	query := `
		SELECT id, user_id, token_hash, token_prefix, created_at, expires_at, revoked_at
		FROM api_tokens
		WHERE token_hash = $1
	`

	var token APIToken
	var expiresAt, revokedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.TokenPrefix,
		&token.CreatedAt,
		&expiresAt,
		&revokedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	if expiresAt.Valid {
		ea := expiresAt.Time
		token.ExpiresAt = &ea
	}
	if revokedAt.Valid {
		ra := revokedAt.Time
		token.RevokedAt = &ra
	}

	return &token, nil
}

// RevokeToken marks a token as revoked
func (s *TokenStore) RevokeToken(ctx context.Context, tokenID int64) error {
	query := `UPDATE api_tokens SET revoked_at = CURRENT_TIMESTAMP WHERE id = $1 AND revoked_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("token not found or already revoked")
	}

	return nil
}

// CleanupExpiredTokens deletes tokens past their expiry
func (s *TokenStore) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	query := `DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < CURRENT_TIMESTAMP`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// Verifier resolves a bearer credential to a principal id. Implementations
// perform pure verification: the subject's existence is validated by the
// caller, not here.
type Verifier interface {
	Verify(ctx context.Context, credential string) (int64, error)
}

// TokenVerifier verifies opaque API tokens against the token store
type TokenVerifier struct {
	generator *TokenGenerator
	store     *TokenStore
}

// NewTokenVerifier creates a new token verifier
func NewTokenVerifier(store *TokenStore) *TokenVerifier {
	return &TokenVerifier{
		generator: NewTokenGenerator(),
		store:     store,
	}
}

// Verify checks the credential and returns the embedded subject id.
// An empty credential fails with ErrNoCredential; a malformed, unknown,
// expired or revoked one with ErrInvalidToken.
func (v *TokenVerifier) Verify(ctx context.Context, credential string) (int64, error) {
	if credential == "" {
		return 0, ErrNoCredential
	}

	if err := v.generator.ValidateTokenFormat(credential); err != nil {
		return 0, ErrInvalidToken
	}

	token, err := v.store.GetTokenByHash(ctx, v.generator.HashToken(credential))
	if err != nil {
		return 0, err
	}

	if token.RevokedAt != nil {
		return 0, ErrInvalidToken
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		return 0, ErrInvalidToken
	}

	return token.UserID, nil
}

// ExtractBearer extracts the credential from an Authorization header value.
// A missing or non-Bearer header yields an empty credential.
func ExtractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
