// Package api exposes a Drip engine as a JSON HTTP service.
//
// Routes live under a base path (default "/drip") on a gorilla/mux router.
// The caller identity comes from the "sub" claim of an HMAC-signed bearer
// JWT. Reads may be anonymous; every mutation needs a token.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/xraph/drip"
	"github.com/xraph/drip/emergency"
	"github.com/xraph/drip/treasury"
)

// DefaultBasePath is the URL prefix used when none is configured.
const DefaultBasePath = "/drip"

// Server routes HTTP requests to a Drip engine.
type Server struct {
	engine    *drip.Engine
	auth      *Authenticator
	treasury  *treasury.Treasury
	emergency *emergency.Coordinator
	logger    *slog.Logger
	basePath  string
	router    *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAuthenticator sets the bearer token verifier.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithBasePath sets the URL prefix for all routes.
func WithBasePath(path string) Option {
	return func(s *Server) { s.basePath = path }
}

// WithTreasury mounts the treasury routes.
func WithTreasury(t *treasury.Treasury) Option {
	return func(s *Server) { s.treasury = t }
}

// WithEmergency mounts the emergency routes.
func WithEmergency(c *emergency.Coordinator) Option {
	return func(s *Server) { s.emergency = c }
}

// New builds a Server. Without an Authenticator every request is anonymous.
func New(engine *drip.Engine, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		logger:   slog.Default(),
		basePath: DefaultBasePath,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.basePath = "/" + strings.Trim(s.basePath, "/")
	if s.basePath == "/" {
		s.basePath = ""
	}

	s.router = mux.NewRouter()
	s.Register(s.router)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// BasePath returns the normalized URL prefix.
func (s *Server) BasePath() string { return s.basePath }

// Register mounts every route on r under the base path.
func (s *Server) Register(r *mux.Router) {
	sr := r
	if s.basePath != "" {
		sr = r.PathPrefix(s.basePath).Subrouter()
	}
	sr.Use(s.logRequests)
	if s.auth != nil {
		sr.Use(s.auth.Middleware)
	}

	// Streams
	sr.HandleFunc("/streams", s.createStream).Methods(http.MethodPost)
	sr.HandleFunc("/streams", s.listStreams).Methods(http.MethodGet)
	sr.HandleFunc("/streams/{id:[0-9]+}", s.getStream).Methods(http.MethodGet)
	sr.HandleFunc("/streams/{id:[0-9]+}/claimable", s.claimable).Methods(http.MethodGet)
	sr.HandleFunc("/streams/{id:[0-9]+}/claim", s.claimStream).Methods(http.MethodPost)
	sr.HandleFunc("/streams/{id:[0-9]+}/cancel", s.cancelStream).Methods(http.MethodPost)
	sr.HandleFunc("/streams/{id:[0-9]+}/pause", s.pauseStream).Methods(http.MethodPost)
	sr.HandleFunc("/streams/{id:[0-9]+}/resume", s.resumeStream).Methods(http.MethodPost)
	sr.HandleFunc("/aggregates/{identity}", s.getAggregate).Methods(http.MethodGet)
	sr.HandleFunc("/events", s.listEvents).Methods(http.MethodGet)
	sr.HandleFunc("/stats", s.stats).Methods(http.MethodGet)

	// Access control
	sr.HandleFunc("/roles/{role}", s.listRoleHolders).Methods(http.MethodGet)
	sr.HandleFunc("/roles/{role}/{identity}", s.hasRole).Methods(http.MethodGet)
	sr.HandleFunc("/roles/{role}/{identity}", s.grantRole).Methods(http.MethodPut)
	sr.HandleFunc("/roles/{role}/{identity}", s.revokeRole).Methods(http.MethodDelete)
	sr.HandleFunc("/identities/{identity}/roles", s.identityRoles).Methods(http.MethodGet)
	sr.HandleFunc("/admin/transfer", s.initiateAdminTransfer).Methods(http.MethodPost)
	sr.HandleFunc("/admin/transfer", s.cancelAdminTransfer).Methods(http.MethodDelete)
	sr.HandleFunc("/admin/transfer/{from}", s.getAdminTransfer).Methods(http.MethodGet)
	sr.HandleFunc("/admin/transfer/{from}/accept", s.acceptAdminTransfer).Methods(http.MethodPost)

	// Contract
	sr.HandleFunc("/contract", s.contractState).Methods(http.MethodGet)
	sr.HandleFunc("/contract/pause", s.pauseContract).Methods(http.MethodPost)
	sr.HandleFunc("/contract/unpause", s.unpauseContract).Methods(http.MethodPost)
	sr.HandleFunc("/contract/fee-rate", s.setFeeRate).Methods(http.MethodPut)

	if s.treasury != nil {
		sr.HandleFunc("/treasury", s.treasuryState).Methods(http.MethodGet)
		sr.HandleFunc("/treasury/withdraw", s.withdraw).Methods(http.MethodPost)
		sr.HandleFunc("/treasury/lock", s.lockTreasury).Methods(http.MethodPost)
		sr.HandleFunc("/treasury/unlock", s.unlockTreasury).Methods(http.MethodPost)
	}

	if s.emergency != nil {
		sr.HandleFunc("/emergency", s.emergencyState).Methods(http.MethodGet)
		sr.HandleFunc("/emergency/pause", s.emergencyPause).Methods(http.MethodPost)
		sr.HandleFunc("/emergency/stop", s.emergencyStop).Methods(http.MethodPost)
		sr.HandleFunc("/emergency/resume", s.emergencyResume).Methods(http.MethodPost)
	}

	sr.HandleFunc("/health", s.health).Methods(http.MethodGet)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
