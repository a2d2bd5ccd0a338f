package server

import (
	"log/slog"
	"net/http"

	"github.com/maauso/transcode-api/internal/metrics"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// Metrics records per-request measurements.
	Metrics metrics.Recorder
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		Metrics:        metrics.Noop{},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /trim-video", h.TrimVideo)
	mux.HandleFunc("POST /resize-video", h.ResizeVideo)
	mux.HandleFunc("POST /merge-videos", h.MergeVideos)
	mux.HandleFunc("POST /add-audio-to-video", h.AddAudio)
	mux.HandleFunc("POST /images-to-video", h.ImagesToVideo)
	mux.HandleFunc("GET /download/{filename}", h.Download)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		MetricsMiddleware(recorder),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
