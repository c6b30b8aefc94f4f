package api

import (
	"context"
	"database/sql"
	"net"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/config"
	"github.com/orgdeck/orgdeck/pkg/middleware"
	"github.com/orgdeck/orgdeck/pkg/observability"
	"github.com/orgdeck/orgdeck/pkg/orgs"
	"github.com/orgdeck/orgdeck/pkg/rbac"
)

// Server assembles the HTTP API: handlers, middleware chain, and the
// permission gate in front of every protected route.
type Server struct {
	cfg     *config.Config
	logger  *observability.Logger
	router  *mux.Router
	httpSrv *http.Server

	gate         *rbac.Gate
	authHandlers *auth.Handlers
	orgHandlers  *orgs.Handlers
	permHandlers *rbac.Handlers
}

// NewServer wires the full API. redisClient and metrics may be nil.
func NewServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, logger *observability.Logger, metrics *observability.Metrics) *Server {
	users := auth.NewUserStore(db)
	tokens := auth.NewTokenStore(db)
	verifier := auth.NewTokenVerifier(tokens)
	orgService := orgs.NewPostgresService(db)

	permStore := rbac.NewStore(db)
	cache := rbac.NewCache(cfg.Auth.PermissionCacheSize, cfg.Auth.PermissionCacheTTL, redisClient, metrics)
	resolver := rbac.NewResolver(permStore, cache)
	gate := rbac.NewGate(
		verifier,
		rbac.NewClassifier(users, orgService),
		resolver,
		rbac.NewEvaluator(orgService),
		logger,
		metrics,
	)

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		gate:         gate,
		authHandlers: auth.NewHandlers(db, logger, cfg.Auth.BcryptCost, cfg.Auth.TokenTTL),
		orgHandlers:  orgs.NewHandlers(db, logger),
		permHandlers: rbac.NewHandlers(permStore, resolver, cache, logger),
	}

	authMW := middleware.NewAuthMiddleware(verifier, users)
	limiter := middleware.NewRateLimiter(redisClient, middleware.DefaultRateLimitConfig(), "ratelimit:public")

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))
	if metrics != nil {
		router.Use(metrics.HTTPMiddleware)
	}

	s.registerRoutes(router, authMW, limiter)
	s.router = router
	return s
}

// registerRoutes lays out the API surface. Three tiers: public (rate
// limited), authenticated (identity but no flag), and gated (identity plus a
// permission flag, plus a scope check on per-employee routes).
func (s *Server) registerRoutes(router *mux.Router, authMW *middleware.AuthMiddleware, limiter *middleware.RateLimiter) {
	api := router.PathPrefix("/api").Subrouter()

	// Public surface
	public := api.NewRoute().Subrouter()
	public.Use(limiter.Handler)
	s.authHandlers.RegisterRoutes(public)
	public.HandleFunc("/invitations/{token}", s.orgHandlers.GetInvitationPreview).Methods(http.MethodGet)

	// Authenticated, ungated. Creating the first organization and accepting
	// an invitation happen before the caller has any organizational role.
	authed := api.NewRoute().Subrouter()
	authed.Use(authMW.Handler)
	authed.HandleFunc("/auth/logout", s.authHandlers.Logout).Methods(http.MethodPost)
	authed.HandleFunc("/auth/me", s.authHandlers.Me).Methods(http.MethodGet)
	authed.HandleFunc("/orgs", s.orgHandlers.CreateOrganization).Methods(http.MethodPost)
	authed.HandleFunc("/invitations/accept", s.orgHandlers.AcceptInvitation).Methods(http.MethodPost)

	// Organization routes. The owner check for update and delete lives in
	// the handlers; the gate establishes membership and the flag.
	org := api.PathPrefix("/orgs/{org_id:[0-9]+}").Subrouter()

	handle := func(path string, h http.HandlerFunc, flag rbac.Flag, methods ...string) {
		org.Handle(path, s.gate.Require(flag)(h)).Methods(methods...)
	}
	handleEmployee := func(path string, h http.HandlerFunc, flag rbac.Flag, methods ...string) {
		org.Handle(path, s.gate.RequireEmployeeAccess(flag)(h)).Methods(methods...)
	}

	handle("", s.orgHandlers.GetOrganization, rbac.FlagViewOrgChart, http.MethodGet)
	handle("", s.orgHandlers.UpdateOrganization, rbac.FlagDashboardAccess, http.MethodPut)
	handle("", s.orgHandlers.DeleteOrganization, rbac.FlagDashboardAccess, http.MethodDelete)

	handle("/departments", s.orgHandlers.CreateDepartment, rbac.FlagCreateDepartments, http.MethodPost)
	handle("/departments", s.orgHandlers.ListDepartments, rbac.FlagViewOrgChart, http.MethodGet)
	handle("/departments/{dept_id:[0-9]+}", s.orgHandlers.UpdateDepartment, rbac.FlagEditDepartments, http.MethodPut)
	handle("/departments/{dept_id:[0-9]+}", s.orgHandlers.DeleteDepartment, rbac.FlagDeleteDepartments, http.MethodDelete)

	handle("/employees", s.orgHandlers.ListEmployees, rbac.FlagViewEmployees, http.MethodGet)
	handleEmployee("/employees/{employee_id:[0-9]+}", s.orgHandlers.GetEmployee, rbac.FlagViewEmployees, http.MethodGet)
	handleEmployee("/employees/{employee_id:[0-9]+}", s.orgHandlers.UpdateEmployee, rbac.FlagEditEmployeeProfiles, http.MethodPut)
	handleEmployee("/employees/{employee_id:[0-9]+}", s.orgHandlers.DeleteEmployee, rbac.FlagDeleteEmployees, http.MethodDelete)

	handle("/invitations", s.orgHandlers.CreateInvitation, rbac.FlagInviteEmployees, http.MethodPost)
	handle("/invitations", s.orgHandlers.ListInvitations, rbac.FlagInviteEmployees, http.MethodGet)
	handle("/invitations/{invitation_id:[0-9]+}", s.orgHandlers.DeleteInvitation, rbac.FlagInviteEmployees, http.MethodDelete)

	s.permHandlers.RegisterRoutes(api, s.gate)
}

// Router exposes the assembled handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving and blocks until the listener fails or Shutdown runs
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("addr", s.httpSrv.Addr).Info("API server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
