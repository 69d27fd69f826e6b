package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Liuhangfung/get-allassets/internal/cache"
	"github.com/Liuhangfung/get-allassets/internal/database"
	"github.com/Liuhangfung/get-allassets/internal/messaging"
	"github.com/Liuhangfung/get-allassets/pkg/config"
)

// Server represents the read-only HTTP API over persisted snapshots
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	mysqlDB    *database.MySQLClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	mysqlDB *database.MySQLClient,
	redisCache *cache.RedisClient,
	natsClient *messaging.NATSClient,
) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mysqlDB:    mysqlDB,
		redisCache: redisCache,
		natsClient: natsClient,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Apply middleware FIRST, before defining routes
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Snapshot endpoints
	apiV1.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	apiV1.HandleFunc("/assets/{ticker}", s.handleGetAsset).Methods("GET")
	apiV1.HandleFunc("/snapshots/latest", s.handleLatestSnapshotDate).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil {
		if strings.Contains(err.Error(), "address already in use") {
			return fmt.Errorf("port %d is already in use, pick another with --port", s.cfg.Server.Port)
		}
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(next)
}

// Handler functions

// handleHealth checks the health status of all system components
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := map[string]string{}

	if err := s.mysqlDB.Health(ctx); err != nil {
		services["mysql"] = "unhealthy: " + err.Error()
	} else {
		services["mysql"] = "healthy"
	}

	if s.redisCache != nil {
		if err := s.redisCache.Health(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	}

	if s.natsClient != nil {
		if s.natsClient.IsConnected() {
			services["nats"] = "healthy"
		} else {
			services["nats"] = "disconnected"
		}
	}

	status := "healthy"
	for _, v := range services {
		if v != "healthy" {
			status = "degraded"
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"services":  services,
		"timestamp": time.Now().Unix(),
	})
}

// handleGetAssets returns a ranked snapshot. With no date parameter it
// serves the latest snapshot, preferring the Redis copy over MySQL.
func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date := r.URL.Query().Get("date")

	if date == "" && s.redisCache != nil {
		assets, err := s.redisCache.GetLatestSnapshot(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Redis snapshot lookup failed, falling back to MySQL")
		} else if assets != nil {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"assets": assets,
				"count":  len(assets),
				"source": "cache",
			})
			return
		}
	}

	assets, err := s.mysqlDB.GetSnapshot(ctx, date)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get snapshot")
		http.Error(w, "Failed to retrieve assets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"assets": assets,
		"count":  len(assets),
		"source": "database",
	})
}

// handleGetAsset returns the most recent row for a single ticker
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ticker := strings.ToUpper(vars["ticker"])
	ctx := r.Context()

	asset, err := s.mysqlDB.GetAsset(ctx, ticker)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get asset")
		http.Error(w, "Failed to retrieve asset", http.StatusInternalServerError)
		return
	}

	if asset == nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asset)
}

// handleLatestSnapshotDate returns the date of the newest persisted snapshot
func (s *Server) handleLatestSnapshotDate(w http.ResponseWriter, r *http.Request) {
	date, err := s.mysqlDB.LatestSnapshotDate(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to get latest snapshot date")
		http.Error(w, "Failed to retrieve snapshot date", http.StatusInternalServerError)
		return
	}

	if date == "" {
		http.Error(w, "No snapshots available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"snapshot_date": date})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
