package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/pulse/pkg/observability"
)

// ReadService answers result, status, readings and catalog queries.
// Implemented by the analytics read service.
type ReadService interface {
	Result(ctx context.Context, key ResultKey) (*AnalyticsResult, error)
	Results(ctx context.Context, userID int64, analyticsType string, timeRange TimeRange) ([]*AnalyticsResult, error)
	Status(ctx context.Context, key ResultKey) (*StatusReport, error)
	Readings(ctx context.Context, userID int64, dataType string, start, end time.Time) ([]Reading, error)
	Catalog() []MetricMetadata
}

// JobCreator enqueues aggregation jobs on explicit request.
type JobCreator interface {
	Enqueue(ctx context.Context, userID int64, analyticsType string, timeRange TimeRange, start, end time.Time) (*AnalyticsJob, error)
}

// TriggerCreator inserts on-demand fetch triggers.
type TriggerCreator interface {
	Insert(ctx context.Context, userID int64, daysBack int) (*FetchTrigger, error)
}

// UserDirectory resolves and lists pipeline users.
type UserDirectory interface {
	EnsureUser(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}

// Server is the HTTP surface of the pipeline. Reads dominate; the only
// writes are user registration, fetch triggers and explicit job
// creation.
type Server struct {
	router   *mux.Router
	service  ReadService
	users    UserDirectory
	jobs     JobCreator
	triggers TriggerCreator
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewServer wires the router. metrics may be nil (tests).
func NewServer(service ReadService, users UserDirectory, jobs JobCreator, triggers TriggerCreator, metrics *observability.Metrics, logger *observability.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		service:  service,
		users:    users,
		jobs:     jobs,
		triggers: triggers,
		metrics:  metrics,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Use(s.requestIDMiddleware)
	if s.metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(s.metrics)))
	}

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)
	v1.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	v1.HandleFunc("/users/{userID}/readings/{dataType}", s.handleReadings).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userID}/results", s.handleResults).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userID}/status/{analyticsType}/{timeRange}", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userID}/triggers", s.handleCreateTrigger).Methods(http.MethodPost)
	v1.HandleFunc("/users/{userID}/jobs", s.handleCreateJob).Methods(http.MethodPost)
}

// Handler returns the full middleware-wrapped handler, traced when a
// tracer provider is installed.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "pulse-api")
}

// requestIDMiddleware stamps every request with an ID carried through
// logs and the response.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := observability.WithRequestID(r.Context(), requestID)
		ctx = observability.WithLogger(ctx, s.logger.WithField("request_id", requestID))
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
