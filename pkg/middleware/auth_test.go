package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/contextkeys"
)

// stubVerifier maps one credential to one user id
type stubVerifier struct {
	credential string
	userID     int64
}

func (v *stubVerifier) Verify(_ context.Context, credential string) (int64, error) {
	if credential == "" {
		return 0, auth.ErrNoCredential
	}
	if credential != v.credential {
		return 0, auth.ErrInvalidToken
	}
	return v.userID, nil
}

func setupUserDB(t *testing.T) (*sql.DB, int64) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		external_auth_id TEXT,
		system_role TEXT NOT NULL DEFAULT 'Employee',
		linked_organization_id INTEGER,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)

	res, err := db.Exec(`INSERT INTO users (email) VALUES ('user@test')`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return db, id
}

func TestAuthMiddleware(t *testing.T) {
	db, userID := setupUserDB(t)
	m := NewAuthMiddleware(&stubVerifier{credential: "od_valid", userID: userID}, auth.NewUserStore(db))

	var seen *auth.User
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(contextkeys.UserKey).(*auth.User)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer od_wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token attaches user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer od_valid")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, userID, seen.ID)
		assert.Equal(t, "user@test", seen.Email)
	})

	t.Run("valid token for deleted user", func(t *testing.T) {
		_, err := db.Exec(`DELETE FROM users WHERE id = $1`, userID)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer od_valid")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
