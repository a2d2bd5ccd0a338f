// Package asset downloads remote media into scratch files.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds a single download, body included.
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxParallel bounds concurrent downloads within one FetchAll call.
	DefaultMaxParallel = 4

	// sniffBytes is enough for every matcher in filetype.
	sniffBytes = 262
)

// Static errors wrapped by FetchError.
var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid asset url")
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrUnexpectedContent is returned when the body does not match the expected kind.
	ErrUnexpectedContent = errors.New("unexpected content type")
)

// Kind is the kind of media an asset is expected to hold.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var knownSuffixes = map[Kind]map[string]bool{
	KindVideo: {".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true, ".m4v": true},
	KindAudio: {".mp3": true, ".wav": true, ".aac": true, ".m4a": true, ".ogg": true, ".flac": true},
	KindImage: {".jpg": true, ".jpeg": true, ".png": true},
}

var fallbackSuffixes = map[Kind]string{
	KindVideo: ".mp4",
	KindAudio: ".mp3",
	KindImage: ".jpg",
}

// FetchError describes a failed download.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Allocator hands out scratch paths. *storage.Scope implements it.
type Allocator interface {
	Allocate(suffix string) string
}

// Fetcher downloads assets over HTTP.
type Fetcher struct {
	httpClient  *http.Client
	maxParallel int
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithTimeout sets the per-download timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithMaxParallel bounds concurrent downloads in FetchAll.
func WithMaxParallel(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxParallel = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		maxParallel: DefaultMaxParallel,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch streams the resource at rawURL into a new file allocated from alloc
// and returns its path. On failure the file may exist partially; releasing it
// is left to the owner of alloc.
func (f *Fetcher) Fetch(ctx context.Context, alloc Allocator, rawURL string, kind Kind) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &FetchError{URL: rawURL, Err: ErrInvalidURL}
	}

	dest := alloc.Allocate(SuffixFor(u, kind))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	n, err := writeBody(dest, resp.Body)
	if err != nil {
		return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return "", &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, n, resp.ContentLength),
		}
	}

	if kind == KindImage {
		if err := sniffImage(dest); err != nil {
			return "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
		}
	}

	f.logger.Debug("asset fetched",
		slog.String("kind", kind.String()),
		slog.String("host", u.Host),
		slog.Int64("bytes", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return dest, nil
}

// FetchAll fetches urls concurrently and returns their paths in input order.
// The first failure cancels the remaining downloads.
func (f *Fetcher) FetchAll(ctx context.Context, alloc Allocator, urls []string, kind Kind) ([]string, error) {
	paths := make([]string, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxParallel)
	for i, u := range urls {
		g.Go(func() error {
			p, err := f.Fetch(gctx, alloc, u, kind)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// SuffixFor picks the scratch file suffix for u: its own extension when it is
// a known one for kind, the kind's default otherwise.
func SuffixFor(u *url.URL, kind Kind) string {
	ext := strings.ToLower(path.Ext(u.Path))
	if knownSuffixes[kind][ext] {
		return ext
	}
	return fallbackSuffixes[kind]
}

func writeBody(dest string, body io.Reader) (n int64, err error) {
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 - dest is a scratch path
	if err != nil {
		return 0, fmt.Errorf("create asset file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close asset file: %w", cerr)
		}
	}()

	n, err = io.Copy(out, body)
	if err != nil {
		return n, fmt.Errorf("copy asset data: %w", err)
	}
	return n, nil
}

func sniffImage(p string) error {
	f, err := os.Open(p) // #nosec G304 - p is a scratch path
	if err != nil {
		return fmt.Errorf("open asset file: %w", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read asset header: %w", err)
	}
	if !filetype.IsImage(head[:n]) {
		return fmt.Errorf("%w: expected an image", ErrUnexpectedContent)
	}
	return nil
}
