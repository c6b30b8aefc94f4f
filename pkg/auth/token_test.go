package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, tokenHash, tokenPrefix, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	// Check token format
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("Token should start with %q, got %q", TokenPrefix, token)
	}

	// Check hash length (SHA256 = 64 hex chars)
	if len(tokenHash) != 64 {
		t.Errorf("TokenHash length = %d, want 64", len(tokenHash))
	}

	// Check prefix format
	if !strings.HasPrefix(tokenPrefix, TokenPrefix) {
		t.Errorf("TokenPrefix should start with %q, got %q", TokenPrefix, tokenPrefix)
	}

	// Hash must match the generated token
	if tg.HashToken(token) != tokenHash {
		t.Error("HashToken(token) should equal the returned hash")
	}
}

func TestTokenGenerator_GenerateToken_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator()

	tokens := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, _, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		tokens[token] = true
	}
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{
			name:    "valid token",
			token:   "od_abc123def456",
			wantErr: false,
		},
		{
			name:    "missing prefix",
			token:   "abc123def456",
			wantErr: true,
		},
		{
			name:    "wrong prefix",
			token:   "other_abc123def456",
			wantErr: true,
		},
		{
			name:    "empty token part",
			token:   "od_",
			wantErr: true,
		},
		{
			name:    "invalid base64",
			token:   "od_!!!invalid!!!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokenFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "bearer token", header: "Bearer od_abc123", want: "od_abc123"},
		{name: "lowercase scheme", header: "bearer od_abc123", want: "od_abc123"},
		{name: "empty header", header: "", want: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "scheme only", header: "Bearer", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBearer(tt.header); got != tt.want {
				t.Errorf("ExtractBearer(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestTokenVerifier_Verify(t *testing.T) {
	tg := NewTokenGenerator()
	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	tokenColumns := []string{"id", "user_id", "token_hash", "token_prefix", "created_at", "expires_at", "revoked_at"}

	t.Run("empty credential", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		verifier := NewTokenVerifier(NewTokenStore(db))
		_, err = verifier.Verify(context.Background(), "")
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("malformed credential", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		verifier := NewTokenVerifier(NewTokenStore(db))
		_, err = verifier.Verify(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs(hash).
			WillReturnRows(sqlmock.NewRows(tokenColumns))

		verifier := NewTokenVerifier(NewTokenStore(db))
		_, err = verifier.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("valid token", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expiresAt := time.Now().Add(time.Hour)
		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs(hash).
			WillReturnRows(sqlmock.NewRows(tokenColumns).
				AddRow(1, 42, hash, prefix, time.Now(), expiresAt, nil))

		verifier := NewTokenVerifier(NewTokenStore(db))
		userID, err := verifier.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), userID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired token", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		expiresAt := time.Now().Add(-time.Minute)
		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs(hash).
			WillReturnRows(sqlmock.NewRows(tokenColumns).
				AddRow(1, 42, hash, prefix, time.Now().Add(-time.Hour), expiresAt, nil))

		verifier := NewTokenVerifier(NewTokenStore(db))
		_, err = verifier.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked token", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		revokedAt := time.Now().Add(-time.Minute)
		mock.ExpectQuery("SELECT id, user_id, token_hash").
			WithArgs(hash).
			WillReturnRows(sqlmock.NewRows(tokenColumns).
				AddRow(1, 42, hash, prefix, time.Now().Add(-time.Hour), nil, revokedAt))

		verifier := NewTokenVerifier(NewTokenStore(db))
		_, err = verifier.Verify(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenStore_CreateToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewTokenStore(db)
	expiresAt := time.Now().Add(24 * time.Hour)

	mock.ExpectQuery("INSERT INTO api_tokens").
		WithArgs(int64(7), "somehash", "od_abcdefgh", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))

	token := &APIToken{
		UserID:      7,
		TokenHash:   "somehash",
		TokenPrefix: "od_abcdefgh",
		ExpiresAt:   &expiresAt,
	}

	err = store.CreateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(99), token.ID)
	assert.False(t, token.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore_RevokeToken(t *testing.T) {
	t.Run("revokes", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE api_tokens SET revoked_at").
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		store := NewTokenStore(db)
		require.NoError(t, store.RevokeToken(context.Background(), 5))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already revoked", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE api_tokens SET revoked_at").
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		store := NewTokenStore(db)
		assert.Error(t, store.RevokeToken(context.Background(), 5))
	})
}

func TestTokenStore_CleanupExpiredTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM api_tokens WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := NewTokenStore(db)
	deleted, err := store.CleanupExpiredTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
