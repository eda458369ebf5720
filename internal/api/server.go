package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/raaihank/mask-sentinel/internal/snapshot"
	"github.com/raaihank/mask-sentinel/internal/stats"
	"github.com/raaihank/mask-sentinel/internal/web"
	"github.com/raaihank/mask-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info.
var Version = "0.1.0"

// Server is the HTTP front end for the masking engine.
type Server struct {
	mu     sync.RWMutex
	config *config.Config

	logger    *logger.Logger
	engine    *privacy.Engine
	snapshots snapshot.Store
	recorder  stats.Recorder
	wsHub     *websocket.Hub
	limiter   *ipLimiter
	router    *mux.Router
	server    *http.Server
	started   time.Time

	stopHub context.CancelFunc
}

// New creates a server. snapshots and recorder may be nil, in which case
// in-memory implementations are used.
func New(cfg *config.Config, log *logger.Logger, engine *privacy.Engine, snapshots snapshot.Store, recorder stats.Recorder) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if snapshots == nil {
		snapshots = snapshot.NewMemoryStore(cfg.Snapshots.MaxSnapshots)
	}
	if recorder == nil {
		recorder = stats.NewMemoryRecorder()
	}

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("api"),
		engine:    engine,
		snapshots: snapshots,
		recorder:  recorder,
		wsHub:     websocket.NewHub(cfg.WebSocket, log),
		limiter:   newIPLimiter(cfg.RateLimit),
		router:    mux.NewRouter(),
		started:   time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
		s.router.HandleFunc("/display", s.wsHub.RequireAuth(web.DisplayHandler(s.config.WebSocket.Path))).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(s.rateLimitMiddleware)
	v1.Use(s.bodyLimitMiddleware)

	v1.HandleFunc("/mask", s.handleMask).Methods(http.MethodPost)
	v1.HandleFunc("/restore", s.handleRestore).Methods(http.MethodPost)

	v1.HandleFunc("/patterns", s.handleListPatterns).Methods(http.MethodGet)
	v1.HandleFunc("/patterns/validate", s.handleValidatePattern).Methods(http.MethodPost)
	v1.HandleFunc("/patterns/{key}", s.handlePutPattern).Methods(http.MethodPut)
	v1.HandleFunc("/patterns/{key}", s.handleDeletePattern).Methods(http.MethodDelete)
	v1.HandleFunc("/patterns/{key}", s.handlePatchPattern).Methods(http.MethodPatch)

	v1.HandleFunc("/snapshots", s.handleListSnapshots).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots/{id}", s.handleGetSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots/{id}", s.handleDeleteSnapshot).Methods(http.MethodDelete)

	v1.HandleFunc("/stats", s.handleGetStats).Methods(http.MethodGet)
	v1.HandleFunc("/stats", s.handleResetStats).Methods(http.MethodDelete)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the display relay.
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}

// Start runs the hub and serves HTTP until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting Mask-Sentinel API server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("websocket_enabled", s.config.WebSocket.Enabled),
		zap.Bool("rate_limit_enabled", s.config.RateLimit.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.stopHub = cancel
	go s.wsHub.Run(ctx)
	go s.limiter.cleanupLoop(ctx, time.Minute)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and the hub.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping Mask-Sentinel API server")
	if s.stopHub != nil {
		s.stopHub()
	}
	return s.server.Shutdown(ctx)
}

// ApplyConfig reconfigures the engine and the relay from a reloaded file.
// Server, storage and rate-limit settings need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) error {
	if err := s.engine.ApplyConfig(cfg.Privacy); err != nil {
		return err
	}
	s.wsHub.SetConfig(cfg.WebSocket)

	s.mu.Lock()
	s.config.Privacy = cfg.Privacy
	s.config.WebSocket.Events = cfg.WebSocket.Events
	s.mu.Unlock()

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypePatternUpdate,
		Timestamp: time.Now(),
		Data:      websocket.PatternUpdateEvent{Action: "reloaded", Enabled: cfg.Privacy.Enabled},
	})
	return nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleInfo returns service and engine information
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	patterns := s.engine.ListPatterns()
	enabled := 0
	for _, p := range patterns {
		if p.Enabled {
			enabled++
		}
	}

	s.mu.RLock()
	snapshotBackend := s.config.Snapshots.Backend
	statsBackend := s.config.Stats.Backend
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":              "mask-sentinel",
		"version":           Version,
		"masking_enabled":   s.engine.Enabled(),
		"total_rules":       len(patterns),
		"enabled_rules":     enabled,
		"snapshot_backend":  snapshotBackend,
		"stats_backend":     statsBackend,
		"websocket_clients": s.wsHub.ClientCount(),
		"websocket":         s.wsHub.GetStats(),
		"uptime":            time.Since(s.started).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
