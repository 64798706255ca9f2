// Package server exposes the relay over HTTP.
//
// Routes:
//
//	POST /generate  answer a prompt
//	GET  /health    readiness probe
//	GET  /          liveness banner
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"

	"github.com/oswaldbot/relay-go/pkg/core"
	"github.com/oswaldbot/relay-go/pkg/llm"
)

// Error details returned to clients.
const (
	DetailEmptyPrompt    = "Prompt is empty after sanitization."
	DetailUnreachable    = "Could not connect to the language model service."
	DetailUpstreamFailed = "The language model service returned an error."
	DetailInternal       = "An internal server error occurred."
	DetailBadRequest     = "Request body must be JSON with a prompt and a username."
)

// Answerer answers one relay request.
type Answerer interface {
	Answer(ctx context.Context, req core.Request) (*core.Answer, error)
}

// GenerateRequest is the POST /generate body.
type GenerateRequest struct {
	Prompt   string   `json:"prompt"`
	Username string   `json:"username"`
	Model    string   `json:"model,omitempty"`
	Targets  []string `json:"targets,omitempty"`
}

// GenerateResponse is the POST /generate success body.
type GenerateResponse struct {
	Response     string   `json:"response"`
	Queries      []string `json:"queries"`
	ContextState string   `json:"context_state"`
}

// StatusResponse is the body of GET / and GET /health.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Config contains configuration for the HTTP server.
type Config struct {
	// AllowedOrigins lists CORS origins. Empty allows all.
	AllowedOrigins []string

	Logger *slog.Logger
}

// Server is the HTTP relay service.
type Server struct {
	relay  Answerer
	router chi.Router
	logger *slog.Logger
}

// New creates a Server answering through relay.
func New(relay Answerer, cfg *Config) *Server {
	var config Config
	if cfg != nil {
		config = *cfg
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		relay:  relay,
		logger: logger.With("component", "server"),
	}

	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler)
	router.Use(requestID)
	router.Use(requestLogger(s.logger))
	router.Use(middleware.Recoverer)

	router.Get("/", s.handleRoot)
	router.Get("/health", s.handleHealth)
	router.Post("/generate", s.handleGenerate)

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "relay is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Detail: DetailBadRequest})
		return
	}

	prompt := Sanitize(req.Prompt)
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: DetailEmptyPrompt})
		return
	}

	answer, err := s.relay.Answer(r.Context(), core.Request{
		Prompt:         prompt,
		Username:       req.Username,
		Model:          req.Model,
		TargetSubjects: req.Targets,
	})
	if err != nil {
		status, detail := classify(err)
		s.logger.Error("generate failed", "user", req.Username, "status", status,
			"request_id", RequestID(r.Context()), "error", err)
		writeJSON(w, status, ErrorResponse{Detail: detail})
		return
	}

	queries := answer.Queries
	if queries == nil {
		queries = []string{}
	}
	writeJSON(w, http.StatusOK, GenerateResponse{
		Response:     answer.Response,
		Queries:      queries,
		ContextState: answer.ContextState.String(),
	})
}

// classify maps a relay error to an HTTP status and client-facing detail.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, DetailEmptyPrompt
	case llm.IsTransport(err):
		return http.StatusServiceUnavailable, DetailUnreachable
	case llm.IsServer(err):
		return http.StatusBadGateway, DetailUpstreamFailed
	default:
		return http.StatusInternalServerError, DetailInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
