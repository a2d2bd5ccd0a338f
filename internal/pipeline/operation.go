// Package pipeline runs media operations end to end: fetch the inputs, drive
// the engine and register the finished artifact.
package pipeline

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/maauso/transcode-api/internal/media"
)

var (
	// ErrInvalidRequest is wrapped by every validation failure.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoValidInputs is returned when filtering leaves nothing to process.
	ErrNoValidInputs = errors.New("no valid inputs")
)

// Kind names an operation.
type Kind string

const (
	KindTrim          Kind = "trim"
	KindResize        Kind = "resize"
	KindMerge         Kind = "merge"
	KindAddAudio      Kind = "add_audio"
	KindImagesToVideo Kind = "images_to_video"
)

// Operation is one request to the service. Validate performs every check
// that needs no I/O.
type Operation interface {
	Kind() Kind
	Validate() error
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// TrimParams cuts Duration seconds of the input starting at Start.
type TrimParams struct {
	InputURL string
	Start    media.Timecode
	Duration media.Timecode
}

func (TrimParams) Kind() Kind { return KindTrim }

func (p TrimParams) Validate() error {
	if err := checkURL("input video url", p.InputURL); err != nil {
		return err
	}
	if p.Start < 0 {
		return invalid("start time must not be negative")
	}
	if p.Duration <= 0 {
		return invalid("duration must be positive")
	}
	return nil
}

// ResizeParams scales the input to exactly Width x Height.
type ResizeParams struct {
	InputURL string
	Width    int
	Height   int
}

func (ResizeParams) Kind() Kind { return KindResize }

func (p ResizeParams) Validate() error {
	if err := checkURL("input video url", p.InputURL); err != nil {
		return err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return invalid("width and height must be positive, got %dx%d", p.Width, p.Height)
	}
	return nil
}

// MergeParams concatenates the videos in order.
type MergeParams struct {
	VideoURLs []string
}

func (MergeParams) Kind() Kind { return KindMerge }

func (p MergeParams) Validate() error {
	if len(p.VideoURLs) == 0 {
		return invalid("at least one video url is required")
	}
	for i, u := range p.VideoURLs {
		if err := checkURL(fmt.Sprintf("video url %d", i), u); err != nil {
			return err
		}
	}
	return nil
}

// DefaultVolume is the gain applied when a volume is not given.
const DefaultVolume = 1.0

// AddAudioParams mixes two audio tracks over a video. A nil volume means
// DefaultVolume; an explicit zero mutes the track.
type AddAudioParams struct {
	VideoURL           string
	ContentAudioURL    string
	BackgroundAudioURL string
	ContentVolume      *float64
	BackgroundVolume   *float64
}

func (AddAudioParams) Kind() Kind { return KindAddAudio }

func (p AddAudioParams) Validate() error {
	if err := checkURL("video url", p.VideoURL); err != nil {
		return err
	}
	if err := checkURL("content audio url", p.ContentAudioURL); err != nil {
		return err
	}
	if err := checkURL("background audio url", p.BackgroundAudioURL); err != nil {
		return err
	}
	if p.ContentVolume != nil && *p.ContentVolume < 0 {
		return invalid("content volume must not be negative")
	}
	if p.BackgroundVolume != nil && *p.BackgroundVolume < 0 {
		return invalid("background volume must not be negative")
	}
	return nil
}

// Volumes returns the effective content and background gains.
func (p AddAudioParams) Volumes() (content, background float64) {
	content, background = DefaultVolume, DefaultVolume
	if p.ContentVolume != nil {
		content = *p.ContentVolume
	}
	if p.BackgroundVolume != nil {
		background = *p.BackgroundVolume
	}
	return content, background
}

// supportedImageExts are the still image formats accepted for slideshows.
var supportedImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ImagesToVideoParams builds a slideshow showing each image for Duration
// seconds. Entries that are not http(s) URLs or whose path has no supported
// extension are skipped.
type ImagesToVideoParams struct {
	ImageURLs []string
	Duration  float64
}

func (ImagesToVideoParams) Kind() Kind { return KindImagesToVideo }

func (p ImagesToVideoParams) Validate() error {
	if len(p.ImageURLs) == 0 {
		return invalid("at least one image url is required")
	}
	if p.Duration <= 0 {
		return invalid("duration must be positive")
	}
	if len(p.SupportedImages()) == 0 {
		return fmt.Errorf("%w: none of the %d images is a jpg, jpeg or png", ErrNoValidInputs, len(p.ImageURLs))
	}
	return nil
}

// SupportedImages returns the URLs with a supported extension, in order.
func (p ImagesToVideoParams) SupportedImages() []string {
	var out []string
	for _, raw := range p.ImageURLs {
		if isSupportedImage(raw) {
			out = append(out, raw)
		}
	}
	return out
}

func isSupportedImage(raw string) bool {
	u, ok := fetchable(raw)
	if !ok {
		return false
	}
	return supportedImageExts[strings.ToLower(path.Ext(u.Path))]
}

// fetchable parses raw and reports whether it is an absolute http(s) URL
// with a host, the only kind the fetcher downloads.
func fetchable(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

func checkURL(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return invalid("%s is required", name)
	}
	if _, ok := fetchable(raw); !ok {
		return invalid("%s must be an http or https url, got %q", name, raw)
	}
	return nil
}
