// Package api provides the administrative HTTP API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/service"
	"github.com/helper-ledger/internal/storage"
	"github.com/helper-ledger/internal/types"
)

// Service interfaces for dependency injection and testing

// PointsServiceInterface defines the interface for points operations.
type PointsServiceInterface interface {
	Profile(ctx context.Context, userID string) (*service.HelperProfile, error)
	Balance(ctx context.Context, userID string) (int, error)
	GrantPoints(ctx context.Context, userID string, amount int) (*storage.GrantResult, error)
	RemovePoints(ctx context.Context, userID string, amount int) (*storage.RemovalResult, error)
	Leaderboard(ctx context.Context, kind service.LeaderboardKind, timeframe types.Timeframe, limit int) ([]*models.LeaderboardEntry, error)
	CategoryBreakdown(ctx context.Context, userIDs []string, timeframe types.Timeframe) (map[string]models.CategoryBreakdown, error)
}

// PromotionServiceInterface defines the interface for rank transition checks.
type PromotionServiceInterface interface {
	CheckAndApply(ctx context.Context, userID string) (*service.Promotion, error)
}

// VerificationServiceInterface defines the interface for verification operations.
type VerificationServiceInterface interface {
	SetVerified(ctx context.Context, userID string, verified bool) error
}

// ThreadServiceInterface defines the interface for thread operations.
type ThreadServiceInterface interface {
	ForceClose(ctx context.Context, threadID string) (bool, error)
}

// ThreadReader reads thread state for the inspection endpoints.
type ThreadReader interface {
	Get(ctx context.Context, threadID string) (*models.HelpThread, error)
	ListByState(ctx context.Context, state types.ThreadState, limit int) ([]*models.HelpThread, error)
}

// Server represents the HTTP API server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	points       PointsServiceInterface
	promotions   PromotionServiceInterface
	verification VerificationServiceInterface
	threads      ThreadServiceInterface
	threadReader ThreadReader
	config       *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	points PointsServiceInterface,
	promotions PromotionServiceInterface,
	verification VerificationServiceInterface,
	threads ThreadServiceInterface,
	threadReader ThreadReader,
) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		points:       points,
		promotions:   promotions,
		verification: verification,
		threads:      threads,
		threadReader: threadReader,
		config:       config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Middleware order matters: log everything, recover before limiting.
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Helper endpoints
	api.HandleFunc("/helpers/{id}", s.handleGetHelper).Methods("GET")
	api.HandleFunc("/helpers/{id}/balance", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/helpers/{id}/points/grant", s.handleGrantPoints).Methods("POST")
	api.HandleFunc("/helpers/{id}/points/remove", s.handleRemovePoints).Methods("POST")
	api.HandleFunc("/helpers/{id}/verification", s.handleSetVerification).Methods("PUT")
	api.HandleFunc("/helpers/breakdown", s.handleCategoryBreakdown).Methods("POST")

	// Leaderboard endpoints
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")

	// Thread endpoints
	api.HandleFunc("/threads", s.handleListThreads).Methods("GET")
	api.HandleFunc("/threads/{id}", s.handleGetThread).Methods("GET")
	api.HandleFunc("/threads/{id}/close", s.handleForceClose).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "helper-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Default().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Default().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
