// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/NEMYSESx/sift/internal/analyzer"
	"github.com/NEMYSESx/sift/internal/objectstore"
)

// Analyzer runs one analysis request end to end.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error)
}

type Server struct {
	analyzer       Analyzer
	store          objectstore.Store
	logger         *zap.Logger
	bucket         string
	allowedOrigins []string
}

func New(a Analyzer, store objectstore.Store, logger *zap.Logger, bucket string, allowedOrigins []string) *Server {
	return &Server{
		analyzer:       a,
		store:          store,
		logger:         logger,
		bucket:         bucket,
		allowedOrigins: allowedOrigins,
	}
}

// Router builds the full handler chain: routes, CORS, request logging.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/webhook/ci", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	return c.Handler(s.logRequests(r))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}
