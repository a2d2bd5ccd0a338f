package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/transcode-api/internal/artifact"
	"github.com/maauso/transcode-api/internal/asset"
	"github.com/maauso/transcode-api/internal/media"
	"github.com/maauso/transcode-api/internal/storage"
)

// Default time budgets for engine runs.
const (
	DefaultProcessTimeout = media.DefaultTimeout
	DefaultMergeTimeout   = 10 * time.Minute
)

const outputSuffix = ".mp4"

// Fetcher downloads remote assets into scratch files.
type Fetcher interface {
	Fetch(ctx context.Context, alloc asset.Allocator, url string, kind asset.Kind) (string, error)
	FetchAll(ctx context.Context, alloc asset.Allocator, urls []string, kind asset.Kind) ([]string, error)
}

// Recorder receives one observation per finished operation.
type Recorder interface {
	ObserveOperation(operation, status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, time.Duration) {}

// Service executes operations.
type Service struct {
	scratch   *storage.Scratch
	fetcher   Fetcher
	runner    media.Runner
	store     artifact.Store
	publisher storage.Publisher
	recorder  Recorder
	logger    *slog.Logger

	processTimeout time.Duration
	mergeTimeout   time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithProcessTimeout sets the budget of single-input engine runs.
func WithProcessTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.processTimeout = d
		}
	}
}

// WithMergeTimeout sets the budget of merge normalization and concatenation.
func WithMergeTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.mergeTimeout = d
		}
	}
}

// WithPublisher uploads every finished artifact through p.
func WithPublisher(p storage.Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new Service.
func NewService(
	scratch *storage.Scratch,
	fetcher Fetcher,
	runner media.Runner,
	store artifact.Store,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		scratch:        scratch,
		fetcher:        fetcher,
		runner:         runner,
		store:          store,
		recorder:       nopRecorder{},
		logger:         slog.Default(),
		processTimeout: DefaultProcessTimeout,
		mergeTimeout:   DefaultMergeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute validates op, runs it and registers its output. Every scratch file
// created on the way is released before Execute returns, whatever the
// outcome; only the registered output survives.
func (s *Service) Execute(ctx context.Context, op Operation) (artifact.Artifact, error) {
	start := time.Now()
	logger := s.logger.With(slog.String("operation", string(op.Kind())))

	a, err := s.execute(ctx, op)
	elapsed := time.Since(start)
	s.recorder.ObserveOperation(string(op.Kind()), statusOf(err), elapsed)

	if err != nil {
		logger.Warn("operation failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed),
		)
		return artifact.Artifact{}, err
	}

	logger.Info("operation completed",
		slog.String("artifact_id", a.ID),
		slog.Int64("bytes", a.Size),
		slog.Duration("elapsed", elapsed),
	)
	return a, nil
}

func (s *Service) execute(ctx context.Context, op Operation) (artifact.Artifact, error) {
	if err := op.Validate(); err != nil {
		return artifact.Artifact{}, err
	}

	scope := s.scratch.NewScope()
	defer scope.Close()

	var (
		output string
		err    error
	)
	switch op := op.(type) {
	case TrimParams:
		output, err = s.trim(ctx, scope, op)
	case ResizeParams:
		output, err = s.resize(ctx, scope, op)
	case MergeParams:
		output, err = s.merge(ctx, scope, op)
	case AddAudioParams:
		output, err = s.addAudio(ctx, scope, op)
	case ImagesToVideoParams:
		output, err = s.imagesToVideo(ctx, scope, op)
	default:
		return artifact.Artifact{}, invalid("unsupported operation %q", op.Kind())
	}
	if err != nil {
		return artifact.Artifact{}, err
	}

	return s.register(ctx, scope, output)
}

// register publishes and indexes output. Publishing comes first so that the
// remote URL is part of the indexed record. The output is only handed out of
// the scope once the store accepted it.
func (s *Service) register(ctx context.Context, scope *storage.Scope, output string) (artifact.Artifact, error) {
	a, err := artifact.FromFile(output)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("engine produced no output: %w", err)
	}

	if s.publisher != nil {
		remote, err := s.publisher.Publish(ctx, a.ID, output)
		switch {
		case errors.Is(err, storage.ErrS3NotConfigured):
		case err != nil:
			// The local copy stays downloadable; publishing is best effort.
			s.logger.Warn("failed to publish artifact",
				slog.String("artifact_id", a.ID),
				slog.String("error", err.Error()),
			)
		default:
			a.RemoteURL = remote
		}
	}

	if err := s.store.Put(ctx, a); err != nil {
		if a.RemoteURL != "" {
			// The index is write-once, so the remote copy is published first
			// and left behind when indexing fails.
			s.logger.Error("published artifact was not registered",
				slog.String("artifact_id", a.ID),
				slog.String("remote_url", a.RemoteURL),
				slog.String("error", err.Error()),
			)
		}
		return artifact.Artifact{}, fmt.Errorf("register artifact: %w", err)
	}
	scope.Keep(output)
	return a, nil
}

func (s *Service) trim(ctx context.Context, scope *storage.Scope, p TrimParams) (string, error) {
	input, err := s.fetcher.Fetch(ctx, scope, p.InputURL, asset.KindVideo)
	if err != nil {
		return "", err
	}

	output := scope.AllocateOutput(outputSuffix)
	inv, err := media.Trim(input, output, p.Start, p.Duration)
	if err != nil {
		return "", err
	}
	return output, s.run(ctx, inv, s.processTimeout)
}

func (s *Service) resize(ctx context.Context, scope *storage.Scope, p ResizeParams) (string, error) {
	input, err := s.fetcher.Fetch(ctx, scope, p.InputURL, asset.KindVideo)
	if err != nil {
		return "", err
	}

	output := scope.AllocateOutput(outputSuffix)
	inv, err := media.Resize(input, output, p.Width, p.Height)
	if err != nil {
		return "", err
	}
	return output, s.run(ctx, inv, s.processTimeout)
}

// merge normalizes every input to a common profile concurrently, then
// stream-copies them together in request order.
func (s *Service) merge(ctx context.Context, scope *storage.Scope, p MergeParams) (string, error) {
	inputs, err := s.fetcher.FetchAll(ctx, scope, p.VideoURLs, asset.KindVideo)
	if err != nil {
		return "", err
	}

	normalized := make([]string, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		normalized[i] = scope.Allocate(outputSuffix)
		inv := media.Normalize(input, normalized[i])
		g.Go(func() error {
			return s.run(gctx, inv, s.mergeTimeout)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	output := scope.AllocateOutput(outputSuffix)
	inv, err := media.Merge(scope.Allocate(".txt"), normalized, output)
	if err != nil {
		return "", err
	}
	return output, s.run(ctx, inv, s.mergeTimeout)
}

func (s *Service) addAudio(ctx context.Context, scope *storage.Scope, p AddAudioParams) (string, error) {
	var video, content, background string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		video, err = s.fetcher.Fetch(gctx, scope, p.VideoURL, asset.KindVideo)
		return err
	})
	g.Go(func() (err error) {
		content, err = s.fetcher.Fetch(gctx, scope, p.ContentAudioURL, asset.KindAudio)
		return err
	})
	g.Go(func() (err error) {
		background, err = s.fetcher.Fetch(gctx, scope, p.BackgroundAudioURL, asset.KindAudio)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	contentVolume, backgroundVolume := p.Volumes()
	output := scope.AllocateOutput(outputSuffix)
	inv, err := media.AddAudio(video, content, background, output, contentVolume, backgroundVolume)
	if err != nil {
		return "", err
	}
	return output, s.run(ctx, inv, s.processTimeout)
}

func (s *Service) imagesToVideo(ctx context.Context, scope *storage.Scope, p ImagesToVideoParams) (string, error) {
	images, err := s.fetcher.FetchAll(ctx, scope, p.SupportedImages(), asset.KindImage)
	if err != nil {
		return "", err
	}

	output := scope.AllocateOutput(outputSuffix)
	inv, err := media.ImagesToVideo(scope.Allocate(".txt"), images, p.Duration, output)
	if err != nil {
		return "", err
	}
	return output, s.run(ctx, inv, s.processTimeout)
}

func (s *Service) run(ctx context.Context, inv media.Invocation, timeout time.Duration) error {
	_, err := s.runner.Run(ctx, inv, timeout)
	return err
}

// Status labels reported to the Recorder.
const (
	StatusOK               = "ok"
	StatusInvalid          = "invalid"
	StatusFetchFailed      = "fetch_failed"
	StatusProcessingFailed = "processing_failed"
	StatusError            = "error"
)

func statusOf(err error) string {
	var (
		fetchErr *asset.FetchError
		procErr  *media.ProcessingError
	)
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNoValidInputs):
		return StatusInvalid
	case errors.As(err, &fetchErr):
		return StatusFetchFailed
	case errors.As(err, &procErr):
		return StatusProcessingFailed
	default:
		return StatusError
	}
}
