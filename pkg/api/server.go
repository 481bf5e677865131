// Package api exposes the HTTP surface: session resolution, user and
// group management and the resource catalog. Every route except login,
// health and metrics sits behind the credential check and the
// resource authorizer.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/authz"
	"github.com/adminkit/warden/pkg/middleware"
	"github.com/adminkit/warden/pkg/observability"
)

// Server wires the handlers into a router with the middleware chain.
type Server struct {
	router *mux.Router
	log    *logrus.Logger
}

// Deps carries everything the server needs. Health and Metrics may be
// nil; their routes are then omitted.
type Deps struct {
	Sessions    SessionResolver
	Users       UserService
	Groups      GroupService
	Resources   ResourceLister
	Credentials *middleware.Credentials
	Authorizer  *authz.Authorizer
	Metrics     *observability.Metrics
	Health      *observability.HealthHandler
	Log         *logrus.Logger
}

// NewServer builds the router. Protected routes run through the
// credential check first and the resource authorizer second, so the
// authorizer always sees an authenticated user id on the context.
func NewServer(deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		log:    deps.Log,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logging(deps.Log, deps.Metrics))

	sessions := &SessionHandlers{resolver: deps.Sessions, log: deps.Log}
	s.router.HandleFunc("/sessions", sessions.createSession).Methods("POST")

	if deps.Health != nil {
		s.router.Handle("/healthz", deps.Health).Methods("GET")
	}
	if deps.Metrics != nil {
		s.router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	protected := s.router.PathPrefix("/").Subrouter()
	protected.Use(deps.Credentials.Handler)
	protected.Use(deps.Authorizer.Handler)

	(&UserHandlers{users: deps.Users, log: deps.Log}).RegisterRoutes(protected)
	(&GroupHandlers{groups: deps.Groups, log: deps.Log}).RegisterRoutes(protected)
	(&ResourceHandlers{resources: deps.Resources, log: deps.Log}).RegisterRoutes(protected)

	return s
}

// Handler returns the root handler for the HTTP server.
func (s *Server) Handler() http.Handler {
	return s.router
}
