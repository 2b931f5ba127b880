package web

import (
	"context"
	"net/http"
	"time"

	"bestcity-api/internal/logging"
	"bestcity-api/internal/metrics"
	"bestcity-api/internal/store"

	"github.com/go-chi/cors"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Options tunes the HTTP surface.
type Options struct {
	Environment  string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	store   store.Store
	logger  *logging.Logger
	metrics *metrics.Metrics
	opts    Options
	router  *mux.Router
	server  *http.Server
}

func NewServer(st store.Store, logger *logging.Logger, m *metrics.Metrics, opts Options) *Server {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{
		store:   st,
		logger:  logger,
		metrics: m,
		opts:    opts,
		router:  mux.NewRouter(),
	}
	s.routes()
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	// Notes API
	s.router.HandleFunc("/api/v1/notes", s.handleCreate).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/notes", s.handleList).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/notes/{id}", s.handleGet).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/notes/{id}", s.handleUpdate).Methods(http.MethodPut)
	s.router.HandleFunc("/api/v1/notes/{id}", s.handleDelete).Methods(http.MethodDelete)

	// Process endpoints
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// Handler returns the router wrapped in the middleware chain, outermost first:
// metrics, request id, access log, CORS, tracing, panic recovery.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.recovery(h)
	h = s.tracing(h)
	h = cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	})(h)
	h = handlers.CombinedLoggingHandler(s.logger.Writer(), h)
	h = requestID(h)
	h = s.metrics.Middleware(s.routeName)(h)
	return h
}

// unmatchedRoute labels every request no route template claims, keeping
// metric cardinality bounded.
const unmatchedRoute = "unmatched"

// routeName is the path template the request resolves to.
func (s *Server) routeName(r *http.Request) string {
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return unmatchedRoute
}

// Start launches the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start(port string) error {
	s.server.Addr = ":" + port
	s.logger.Info("Server running", zap.String("port", port), zap.String("environment", s.opts.Environment))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Success     bool   `json:"success"`
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Success: true, Status: "ok", Environment: s.opts.Environment})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, http.StatusNotFound, errNotFound, "Route not found", nil)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, http.StatusMethodNotAllowed, errValidation, "Method not allowed", nil)
}
