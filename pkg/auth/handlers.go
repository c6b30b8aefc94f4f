package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/orgdeck/orgdeck/pkg/contextkeys"
	"github.com/orgdeck/orgdeck/pkg/httputil"
	"github.com/orgdeck/orgdeck/pkg/observability"
)

// Handlers provides HTTP handlers for account registration and login
type Handlers struct {
	users      *UserStore
	tokens     *TokenStore
	generator  *TokenGenerator
	logger     *observability.Logger
	bcryptCost int
	tokenTTL   time.Duration
}

// NewHandlers creates new auth handlers
func NewHandlers(db *sql.DB, logger *observability.Logger, bcryptCost int, tokenTTL time.Duration) *Handlers {
	return &Handlers{
		users:      NewUserStore(db),
		tokens:     NewTokenStore(db),
		generator:  NewTokenGenerator(),
		logger:     logger,
		bcryptCost: bcryptCost,
		tokenTTL:   tokenTTL,
	}
}

// RegisterRoutes registers all auth routes. These are the only routes that
// do not sit behind the authentication middleware.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	User      *User      `json:"user"`
}

// Register creates a new user account and issues an initial token.
// New accounts start as Employee with no organization; creating an
// organization promotes the account to Admin.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteBadRequest(w, "A valid email is required")
		return
	}

	passwordHash, err := HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	user := &User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		SystemRole:   SystemEmployee,
	}

	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			httputil.WriteConflict(w, ErrEmailTaken.Error())
			return
		}
		h.logger.WithError(err).Error("failed to create user")
		httputil.WriteInternalError(w)
		return
	}

	resp, err := h.issueToken(r, user)
	if err != nil {
		h.logger.WithError(err).Error("failed to issue token")
		httputil.WriteInternalError(w)
		return
	}

	h.logger.WithField("user_id", user.ID).Info("user registered")
	httputil.WriteCreated(w, resp)
}

// Login verifies credentials and issues a fresh token
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Same response as a wrong password: do not reveal
			// which emails are registered.
			httputil.WriteUnauthorized(w, ErrBadCredentials.Error())
			return
		}
		h.logger.WithError(err).Error("failed to look up user")
		httputil.WriteInternalError(w)
		return
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		httputil.WriteUnauthorized(w, ErrBadCredentials.Error())
		return
	}

	resp, err := h.issueToken(r, user)
	if err != nil {
		h.logger.WithError(err).Error("failed to issue token")
		httputil.WriteInternalError(w)
		return
	}

	h.logger.WithField("user_id", user.ID).Info("user logged in")
	httputil.WriteSuccess(w, resp)
}

// Logout revokes the token used on this request
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credential := ExtractBearer(r.Header.Get("Authorization"))
	if credential == "" {
		httputil.WriteUnauthorized(w, ErrNoCredential.Error())
		return
	}

	token, err := h.tokens.GetTokenByHash(ctx, h.generator.HashToken(credential))
	if err != nil || token.RevokedAt != nil {
		httputil.WriteUnauthorized(w, ErrInvalidToken.Error())
		return
	}

	if err := h.tokens.RevokeToken(ctx, token.ID); err != nil {
		h.logger.WithError(err).Error("failed to revoke token")
		httputil.WriteInternalError(w)
		return
	}

	httputil.WriteNoContent(w)
}

// Me returns the authenticated user attached by the middleware
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(contextkeys.UserKey).(*User)
	if !ok || user == nil {
		httputil.WriteUnauthorized(w, ErrNoCredential.Error())
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *Handlers) issueToken(r *http.Request, user *User) (*tokenResponse, error) {
	plaintext, hash, prefix, err := h.generator.GenerateToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(h.tokenTTL)
	token := &APIToken{
		UserID:      user.ID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		ExpiresAt:   &expiresAt,
	}

	if err := h.tokens.CreateToken(r.Context(), token); err != nil {
		return nil, err
	}

	return &tokenResponse{
		Token:     plaintext,
		ExpiresAt: token.ExpiresAt,
		User:      user,
	}, nil
}
