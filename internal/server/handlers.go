package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/transcode-api/internal/artifact"
	"github.com/maauso/transcode-api/internal/asset"
	"github.com/maauso/transcode-api/internal/media"
	"github.com/maauso/transcode-api/internal/pipeline"
)

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 1 << 20

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNoValidInputs    = "NO_VALID_INPUTS"
	CodeFetchFailed      = "FETCH_FAILED"
	CodeProcessingFailed = "PROCESSING_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

// Executor runs operations.
type Executor interface {
	Execute(ctx context.Context, op pipeline.Operation) (artifact.Artifact, error)
}

// ArtifactLookup resolves artifact ids.
type ArtifactLookup interface {
	Get(ctx context.Context, id string) (artifact.Artifact, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service       Executor
	artifacts     ArtifactLookup
	validator     *validator.Validate
	logger        *slog.Logger
	publicBaseURL string
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithPublicBaseURL sets the prefix of returned download URLs. When unset the
// URLs are derived from the request's host.
func WithPublicBaseURL(u string) HandlerOption {
	return func(h *Handlers) {
		h.publicBaseURL = strings.TrimRight(u, "/")
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service Executor, artifacts ArtifactLookup, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:   service,
		artifacts: artifacts,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// TrimVideo handles POST /trim-video requests.
func (h *Handlers) TrimVideo(w http.ResponseWriter, r *http.Request) {
	var req TrimVideoRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, ok := h.execute(w, r, pipeline.TrimParams{
		InputURL: req.InputVideoURL,
		Start:    *req.StartTime,
		Duration: *req.Duration,
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, TrimVideoResponse{
		TrimmedVideoURL: h.downloadURL(r, a.ID),
		ArtifactID:      a.ID,
		RemoteURL:       a.RemoteURL,
	})
}

// ResizeVideo handles POST /resize-video requests.
func (h *Handlers) ResizeVideo(w http.ResponseWriter, r *http.Request) {
	var req ResizeVideoRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, ok := h.execute(w, r, pipeline.ResizeParams{
		InputURL: req.InputVideoURL,
		Width:    req.Width,
		Height:   req.Height,
	})
	if !ok {
		return
	}

	h.writeOperation(w, r, "Video resized successfully", a)
}

// MergeVideos handles POST /merge-videos requests.
func (h *Handlers) MergeVideos(w http.ResponseWriter, r *http.Request) {
	var req MergeVideosRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, ok := h.execute(w, r, pipeline.MergeParams{VideoURLs: req.Videos})
	if !ok {
		return
	}

	h.writeOperation(w, r, "Videos merged successfully", a)
}

// AddAudio handles POST /add-audio-to-video requests.
func (h *Handlers) AddAudio(w http.ResponseWriter, r *http.Request) {
	var req AddAudioRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, ok := h.execute(w, r, pipeline.AddAudioParams{
		VideoURL:           req.VideoURL,
		ContentAudioURL:    req.ContentAudioURL,
		BackgroundAudioURL: req.BackgroundAudioURL,
		ContentVolume:      req.ContentVolume,
		BackgroundVolume:   req.BackgroundVolume,
	})
	if !ok {
		return
	}

	h.writeOperation(w, r, "Audio added to video successfully", a)
}

// ImagesToVideo handles POST /images-to-video requests.
func (h *Handlers) ImagesToVideo(w http.ResponseWriter, r *http.Request) {
	var req ImagesToVideoRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Entries without a string URL stay in the list as blanks, which the
	// service counts as unsupported.
	urls := make([]string, len(req.ImageURLs))
	for i, entry := range req.ImageURLs {
		if s, ok := entry.URL.(string); ok {
			urls[i] = s
		}
	}

	a, ok := h.execute(w, r, pipeline.ImagesToVideoParams{
		ImageURLs: urls,
		Duration:  req.Duration,
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ImagesToVideoResponse{
		Message:    "Video created from images successfully",
		VideoURL:   h.downloadURL(r, a.ID),
		ArtifactID: a.ID,
		RemoteURL:  a.RemoteURL,
	})
}

// Download handles GET /download/{filename} requests.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("filename")

	a, err := h.artifacts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found", CodeNotFound)
			return
		}
		h.logger.Error("failed to look up artifact",
			slog.String("artifact_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to look up file", CodeInternal)
		return
	}

	f, err := os.Open(a.Path) // #nosec G304 - path comes from the result store
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "file not found", CodeNotFound)
			return
		}
		h.logger.Error("failed to open artifact",
			slog.String("artifact_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to open file", CodeInternal)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open file", CodeInternal)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+a.ID+`"`)
	http.ServeContent(w, r, a.ID, info.ModTime(), f)
}

// decode reads and validates a JSON body into dst. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), CodeInvalidRequest)
		return false
	}

	// Validate request
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidRequest)
		return false
	}
	return true
}

// execute runs op detached from the request's cancellation, so a client that
// disconnects does not abort work already started.
func (h *Handlers) execute(w http.ResponseWriter, r *http.Request, op pipeline.Operation) (artifact.Artifact, bool) {
	a, err := h.service.Execute(context.WithoutCancel(r.Context()), op)
	if err != nil {
		status, code, message := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("operation failed",
				slog.String("operation", string(op.Kind())),
				slog.String("code", code),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, message, code)
		return artifact.Artifact{}, false
	}
	return a, true
}

// classify maps an operation error to an HTTP status, an error code and a
// client-facing message.
func classify(err error) (status int, code, message string) {
	var (
		fetchErr *asset.FetchError
		procErr  *media.ProcessingError
	)
	switch {
	case errors.Is(err, pipeline.ErrNoValidInputs):
		return http.StatusBadRequest, CodeNoValidInputs, err.Error()
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest, err.Error()
	case errors.As(err, &fetchErr):
		return http.StatusInternalServerError, CodeFetchFailed, err.Error()
	case errors.As(err, &procErr):
		message = "media processing failed"
		if procErr.TimedOut {
			message = "media processing timed out"
		}
		return http.StatusInternalServerError, CodeProcessingFailed, message
	default:
		return http.StatusInternalServerError, CodeInternal, "internal server error"
	}
}

func (h *Handlers) writeOperation(w http.ResponseWriter, r *http.Request, message string, a artifact.Artifact) {
	writeJSON(w, http.StatusOK, OperationResponse{
		Message:    message,
		OutputURL:  h.downloadURL(r, a.ID),
		ArtifactID: a.ID,
		RemoteURL:  a.RemoteURL,
	})
}

// downloadURL returns the absolute URL serving artifact id.
func (h *Handlers) downloadURL(r *http.Request, id string) string {
	base := h.publicBaseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/download/" + url.PathEscape(id)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
