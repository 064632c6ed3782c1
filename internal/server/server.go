// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pdiddy/trust-engine/internal/observability"
	"github.com/pdiddy/trust-engine/internal/pipeline"
	"github.com/pdiddy/trust-engine/pkg/types"
)

// responseMargin is reserved from WriteTimeout for writing the response
// after the analysis deadline passes.
const responseMargin = 5 * time.Second

// StudyAnalyzer is the pipeline entry point the server calls.
type StudyAnalyzer interface {
	AnalyzeStudy(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error)
}

// Server is the HTTP API.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	analyzer   StudyAnalyzer
	validate   *validator.Validate
	cfg        types.ServerConfig
	logger     zerolog.Logger
	metrics    *observability.Metrics
	gatherer   prometheus.Gatherer
}

// New builds a server. gatherer backs /metrics; nil disables the route.
func New(cfg types.ServerConfig, analyzer StudyAnalyzer, logger zerolog.Logger, metrics *observability.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		analyzer: analyzer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
		logger:   logger.With().Str("component", "http-server").Logger(),
		metrics:  metrics,
		gatherer: gatherer,
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLogMiddleware)

	r.Get("/healthz", s.healthHandler)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", s.analyzeHandler)
	})
	return r
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	s.logger.Info().Str("address", ln.Addr().String()).Msg("HTTP server starting")
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting requests and waits for in-flight analyses.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := observability.RequestIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer r.Body.Close()

	var req types.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:     fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				Kind:      string(pipeline.KindInput),
				RequestID: requestID,
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON request body", Kind: string(pipeline.KindInput), RequestID: requestID})
		return
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err), Kind: string(pipeline.KindInput), RequestID: requestID})
		return
	}

	if s.cfg.WriteTimeout > responseMargin {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout-responseMargin)
		defer cancel()
	}

	result, err := s.analyzer.AnalyzeStudy(ctx, req)
	if err != nil {
		status, body := errorStatus(err)
		body.RequestID = requestID
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "30")
		}
		writeError(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// errorStatus maps pipeline failures to HTTP statuses: input 400,
// extraction 422, transient provider 503, other provider 502, scoring 500.
func errorStatus(err error) (int, errorResponse) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}

	body := errorResponse{Error: pe.Message, Kind: string(pe.Kind)}
	switch pe.Kind {
	case pipeline.KindInput:
		return http.StatusBadRequest, body
	case pipeline.KindExtraction:
		return http.StatusUnprocessableEntity, body
	case pipeline.KindProvider:
		if pe.Transient() {
			return http.StatusServiceUnavailable, body
		}
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

// validationMessage names the offending request fields.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+strings.ReplaceAll(fe.Param(), " ", ", "))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}
