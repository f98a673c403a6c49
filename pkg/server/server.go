// Package server exposes the chat exchange and the direct geographic lookups
// over HTTP.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-go-golems/waypoint/pkg/events"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/go-go-golems/waypoint/pkg/metrics"
	"github.com/go-go-golems/waypoint/pkg/orchestrator"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Config struct {
	StaticDir   string
	CORSOrigins []string
	SearchLimit int
	// MapsBrowserKey is handed to the web client for the map widget.
	MapsBrowserKey string
	MapsConfigured bool
	LLMConfigured  bool
	// EventSinks receive the exchange events of every request.
	EventSinks []events.EventSink
}

type Server struct {
	orchestrator *orchestrator.Orchestrator
	geo          geo.Provider
	config       Config
	metrics      *metrics.Recorder
}

func New(o *orchestrator.Orchestrator, g geo.Provider, config Config, m *metrics.Recorder) *Server {
	if config.SearchLimit <= 0 {
		config.SearchLimit = 10
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}
	return &Server{
		orchestrator: o,
		geo:          g,
		config:       config,
		metrics:      m,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	}))

	r.Get("/", s.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/places/search", s.handleSearchPlaces)
		r.Get("/places/{placeID}", s.handlePlaceDetails)
		r.Post("/directions", s.handleDirections)
		r.Post("/geocode", s.handleGeocode)
		r.Get("/reverse-geocode", s.handleReverseGeocode)
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)
		r.Get("/capabilities", s.handleCapabilities)
	})
	r.Handle("/metrics", s.metrics.Handler())

	if s.config.StaticDir != "" {
		if fi, err := os.Stat(s.config.StaticDir); err == nil && fi.IsDir() {
			fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDir)))
			r.Handle("/static/*", fs)
		} else {
			log.Warn().Str("dir", s.config.StaticDir).Msg("Static directory not found, skipping static file mounting")
		}
	}
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.config.StaticDir != "" {
		index := filepath.Join(s.config.StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Waypoint location assistant API",
		"docs":    "/api/health",
	})
}

// requestLogger attaches a request-scoped zerolog logger and the event sinks to
// the context and logs each request once it is done.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		ctx := logger.WithContext(r.Context())
		if len(s.config.EventSinks) > 0 {
			ctx = events.WithEventSinks(ctx, s.config.EventSinks...)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, status)
		logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Run serves on addr until ctx is cancelled, then drains for up to
// shutdownTimeout.
func Run(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting waypoint server")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
		log.Info().Msg("Start shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Dur("timeout", shutdownTimeout).Msg("Graceful shutdown did not complete")
			if err := srv.Close(); err != nil {
				return errors.Wrap(err, "could not close server")
			}
		}
		log.Info().Msg("Server stopped gracefully")
		return nil
	}
}
