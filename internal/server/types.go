// Package server provides the HTTP server for the transcode API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/maauso/transcode-api/internal/media"

// TrimVideoRequest is the HTTP request body for POST /trim-video.
type TrimVideoRequest struct {
	// InputVideoURL is the video to cut.
	InputVideoURL string `json:"inputVideoUrl" validate:"required,http_url"`
	// StartTime is where the cut starts, in seconds or as [HH:]MM:SS[.fff].
	StartTime *media.Timecode `json:"startTime" validate:"required"`
	// Duration is the length of the cut, in the same formats as StartTime.
	Duration *media.Timecode `json:"duration" validate:"required"`
}

// TrimVideoResponse is the HTTP response for POST /trim-video.
type TrimVideoResponse struct {
	TrimmedVideoURL string `json:"trimmedVideoUrl"`
	ArtifactID      string `json:"artifactId"`
	RemoteURL       string `json:"remoteUrl,omitempty"`
}

// ResizeVideoRequest is the HTTP request body for POST /resize-video.
type ResizeVideoRequest struct {
	InputVideoURL string `json:"inputVideoUrl" validate:"required,http_url"`
	Width         int    `json:"width" validate:"required,min=1,max=7680"`
	Height        int    `json:"height" validate:"required,min=1,max=4320"`
}

// MergeVideosRequest is the HTTP request body for POST /merge-videos.
type MergeVideosRequest struct {
	// Videos are concatenated in the given order.
	Videos []string `json:"videos" validate:"required,min=1,dive,required,http_url"`
}

// AddAudioRequest is the HTTP request body for POST /add-audio-to-video.
type AddAudioRequest struct {
	VideoURL           string `json:"videoUrl" validate:"required,http_url"`
	ContentAudioURL    string `json:"contentAudioUrl" validate:"required,http_url"`
	BackgroundAudioURL string `json:"backgroundAudioUrl" validate:"required,http_url"`
	// ContentVolume defaults to 1.0 when omitted. Zero mutes the track.
	ContentVolume *float64 `json:"contentVolume" validate:"omitempty,min=0"`
	// BackgroundVolume defaults to 1.0 when omitted. Zero mutes the track.
	BackgroundVolume *float64 `json:"backgroundVolume" validate:"omitempty,min=0"`
}

// ImageEntry is one element of ImagesToVideoRequest.ImageURLs. URL is left
// untyped so that malformed entries are skipped instead of failing decoding.
type ImageEntry struct {
	URL any `json:"url"`
}

// ImagesToVideoRequest is the HTTP request body for POST /images-to-video.
type ImagesToVideoRequest struct {
	ImageURLs []ImageEntry `json:"imageUrls" validate:"required,min=1"`
	// Duration is how long each image is shown, in seconds.
	Duration float64 `json:"duration" validate:"required,gt=0"`
}

// ImagesToVideoResponse is the HTTP response for POST /images-to-video.
type ImagesToVideoResponse struct {
	Message    string `json:"message"`
	VideoURL   string `json:"videoUrl"`
	ArtifactID string `json:"artifactId"`
	RemoteURL  string `json:"remoteUrl,omitempty"`
}

// OperationResponse is the HTTP response for resize, merge and add-audio.
type OperationResponse struct {
	Message    string `json:"message"`
	OutputURL  string `json:"outputUrl"`
	ArtifactID string `json:"artifactId"`
	RemoteURL  string `json:"remoteUrl,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
