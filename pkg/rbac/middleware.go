package rbac

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/contextkeys"
	"github.com/orgdeck/orgdeck/pkg/httputil"
	"github.com/orgdeck/orgdeck/pkg/observability"
)

// Gate is the permission middleware guarding protected routes. It resolves
// the caller end to end (credential, principal, role, bundle), checks the
// required flag, and either attaches the authorization context or writes a
// structured denial. Handlers behind the gate never see an unauthorized
// request.
type Gate struct {
	verifier   auth.Verifier
	classifier *Classifier
	resolver   *Resolver
	evaluator  *Evaluator
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewGate creates a permission gate. metrics may be nil.
func NewGate(verifier auth.Verifier, classifier *Classifier, resolver *Resolver, evaluator *Evaluator, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		verifier:   verifier,
		classifier: classifier,
		resolver:   resolver,
		evaluator:  evaluator,
		logger:     logger,
		metrics:    metrics,
	}
}

// Require returns middleware that admits only callers whose effective bundle
// has the given flag set
func (g *Gate) Require(flag Flag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			authz, err := g.authorize(r)
			if err != nil {
				g.deny(w, r, flag, err, start)
				return
			}

			if !authz.Permissions.Has(flag) {
				g.deny(w, r, flag, ErrAccessDenied, start)
				return
			}

			g.observe(flag, string(authz.Role), true, start)

			ctx := contextkeys.WithAuthz(r.Context(), authz)
			ctx = contextkeys.WithUser(ctx, authz.User)
			ctx = contextkeys.WithOrg(ctx, authz.Organization)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireEmployeeAccess is Require plus a target scope check: the route must
// carry an {employee_id} variable, and the caller's access scope must reach
// that employee.
func (g *Gate) RequireEmployeeAccess(flag Flag) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			authz, err := g.authorize(r)
			if err != nil {
				g.deny(w, r, flag, err, start)
				return
			}

			if !authz.Permissions.Has(flag) {
				g.deny(w, r, flag, ErrAccessDenied, start)
				return
			}

			targetID, err := strconv.ParseInt(mux.Vars(r)["employee_id"], 10, 64)
			if err != nil {
				httputil.WriteBadRequest(w, "invalid employee id")
				return
			}

			decision, err := g.evaluator.CanAccess(r.Context(), authz, targetID)
			if err != nil {
				g.deny(w, r, flag, err, start)
				return
			}
			if !decision.Allowed {
				g.deny(w, r, flag, ErrAccessDenied, start)
				return
			}

			g.observe(flag, string(authz.Role), true, start)

			ctx := contextkeys.WithAuthz(r.Context(), authz)
			ctx = contextkeys.WithUser(ctx, authz.User)
			ctx = contextkeys.WithOrg(ctx, authz.Organization)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authorize runs the full resolution pipeline for a request
func (g *Gate) authorize(r *http.Request) (*AuthzContext, error) {
	credential := auth.ExtractBearer(r.Header.Get("Authorization"))
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := g.verifier.Verify(r.Context(), credential)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			return nil, ErrUnauthenticated
		}
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	classification, err := g.classifier.Classify(r.Context(), userID, orgHint(r))
	if err != nil {
		return nil, err
	}

	permissions, err := g.resolver.Resolve(r.Context(), classification.Organization.ID, classification.Role)
	if err != nil {
		return nil, err
	}

	return &AuthzContext{
		User:         classification.User,
		Organization: classification.Organization,
		Role:         classification.Role,
		Employee:     classification.Employee,
		Permissions:  permissions,
	}, nil
}

// orgHint extracts the target organization from the route or query string,
// if the caller named one
func orgHint(r *http.Request) *int64 {
	raw := mux.Vars(r)["org_id"]
	if raw == "" {
		raw = r.URL.Query().Get("organization_id")
	}
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// deny writes the structured denial for an authorization error
func (g *Gate) deny(w http.ResponseWriter, r *http.Request, flag Flag, err error, start time.Time) {
	status := StatusCode(err)

	if status == http.StatusInternalServerError {
		g.logger.WithError(err).
			WithField("path", r.URL.Path).
			WithField("request_id", contextkeys.GetRequestID(r.Context())).
			Error("authorization pipeline failure")
		httputil.WriteInternalError(w)
	} else {
		httputil.WriteError(w, status, err)
	}

	if g.metrics != nil && status == http.StatusUnauthorized {
		g.metrics.AuthFailuresTotal.WithLabelValues(err.Error()).Inc()
	}
	g.observe(flag, "", false, start)
}

func (g *Gate) observe(flag Flag, role string, allowed bool, start time.Time) {
	if g.metrics != nil {
		g.metrics.ObservePermissionCheck(string(flag), role, allowed, time.Since(start))
	}
}

// GetAuthz retrieves the authorization context attached by the gate. The
// second return is false on ungated routes.
func GetAuthz(ctx context.Context) (*AuthzContext, bool) {
	authz, ok := ctx.Value(contextkeys.AuthzKey).(*AuthzContext)
	return authz, ok
}
