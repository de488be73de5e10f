// Package api wires the HTTP surface: authentication, organization context,
// organization and user administration, and the audit trail query endpoint.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/authz"
	"github.com/craftwork-crm/craftwork/pkg/middleware"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/sessions"
	"github.com/craftwork-crm/craftwork/pkg/tenantctx"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// Dependencies carries everything the server needs. Audit and Metrics are
// optional; handlers degrade to no-ops without them.
type Dependencies struct {
	Users    users.Service
	Orgs     orgs.Service
	Sessions *sessions.Store
	Resolver *tenantctx.Resolver
	Switcher *tenantctx.Switcher

	Audit       audit.Logger
	AuditSearch audit.Searcher

	Metrics *observability.Metrics
	Logger  *observability.Logger
	Tracing bool
}

// Server is the HTTP API server
type Server struct {
	router *mux.Router
	deps   Dependencies
}

// NewServer creates the API server and sets up all routes
func NewServer(deps Dependencies) *Server {
	if deps.Audit == nil {
		deps.Audit = audit.NewNoopLogger()
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured handler, wrapped with tracing when enabled
func (s *Server) Router() http.Handler {
	if s.deps.Tracing {
		return otelhttp.NewHandler(s.router, "craftwork-api")
	}
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recovery)
	s.router.Use(middleware.RequestID(s.deps.Logger))
	s.router.Use(middleware.Metrics(s.deps.Metrics))

	authHandlers := NewAuthHandlers(s.deps)
	contextHandlers := NewContextHandlers(s.deps)
	orgHandlers := NewOrgHandlers(s.deps)
	userHandlers := NewUserHandlers(s.deps)
	auditHandlers := NewAuditHandlers(s.deps)

	// Unauthenticated routes
	s.router.HandleFunc("/api/v1/auth/login", authHandlers.Login).Methods("POST")

	// Authenticated routes
	authed := s.router.PathPrefix("/api/v1").Subrouter()
	authed.Use(middleware.NewAuthMiddleware(s.deps.Sessions, s.deps.Users, s.deps.Metrics).Handler)

	authed.HandleFunc("/auth/logout", authHandlers.Logout).Methods("POST")
	authed.HandleFunc("/me", authHandlers.Me).Methods("GET")

	// Context switch protocol
	authed.HandleFunc("/context", contextHandlers.GetContext).Methods("GET")
	authed.HandleFunc("/context/switch", contextHandlers.Switch).Methods("POST")
	authed.HandleFunc("/context", contextHandlers.ClearContext).Methods("DELETE")

	// Organization administration
	authed.HandleFunc("/orgs", orgHandlers.CreateOrganization).Methods("POST")
	authed.HandleFunc("/orgs", orgHandlers.ListOrganizations).Methods("GET")
	authed.HandleFunc("/orgs/{id}", orgHandlers.GetOrganization).Methods("GET")
	authed.HandleFunc("/orgs/{id}", orgHandlers.UpdateOrganization).Methods("PUT")
	authed.HandleFunc("/orgs/{id}", orgHandlers.DeactivateOrganization).Methods("DELETE")
	authed.HandleFunc("/orgs/{id}/members", orgHandlers.ListMembers).Methods("GET")
	authed.HandleFunc("/orgs/{id}/members", orgHandlers.GrantAccess).Methods("POST")
	authed.HandleFunc("/orgs/{id}/members/{user_id}", orgHandlers.UpdateMemberRole).Methods("PUT")
	authed.HandleFunc("/orgs/{id}/members/{user_id}", orgHandlers.RevokeAccess).Methods("DELETE")

	// User administration
	authed.HandleFunc("/users", userHandlers.CreateUser).Methods("POST")
	authed.HandleFunc("/users/{id}", userHandlers.GetUser).Methods("GET")
	authed.HandleFunc("/users/{id}/role", userHandlers.UpdatePlatformRole).Methods("PUT")
	authed.HandleFunc("/users/{id}/password", userHandlers.ChangePassword).Methods("PUT")
	authed.HandleFunc("/users/{id}", userHandlers.DeactivateUser).Methods("DELETE")
	authed.HandleFunc("/users/{id}/force-logout", userHandlers.ForceLogout).Methods("POST")

	// Organization-scoped routes: these require a resolved effective context
	// and answer 428 with candidates when none can be derived. Each route is
	// guarded by the context requirement of its action: member listing needs
	// an explicit organization, the audit search may run platform-wide.
	ctxMW := middleware.NewContextMiddleware(s.deps.Resolver, s.deps.Orgs)
	scoped := s.router.PathPrefix("/api/v1").Subrouter()
	scoped.Use(middleware.NewAuthMiddleware(s.deps.Sessions, s.deps.Users, s.deps.Metrics).Handler)
	scoped.Use(ctxMW.Handler)

	scoped.Handle("/users", ctxMW.RequireScoped(authz.ActionViewMembers)(http.HandlerFunc(userHandlers.ListUsers))).Methods("GET")
	scoped.Handle("/audit", ctxMW.RequireScoped(authz.ActionViewAudit)(http.HandlerFunc(auditHandlers.Search))).Methods("GET")
}
