package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/sync/semaphore"
)

// Defaults for the executor.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultMaxConcurrent = 4

	// stderrTailBytes bounds how much diagnostic output is kept per run.
	stderrTailBytes = 64 * 1024
	waitDelay       = 2 * time.Second
)

// ErrTimeout is wrapped by a ProcessingError when the time budget expired.
var ErrTimeout = errors.New("media engine timed out")

// Runner executes invocations. Executor is the production implementation.
type Runner interface {
	// Run executes inv and blocks until the process exits or timeout expires.
	// A zero timeout selects the runner's default.
	Run(ctx context.Context, inv Invocation, timeout time.Duration) (Result, error)
}

// Observer receives one call per finished invocation.
type Observer interface {
	ObserveInvocation(name, status string, elapsed time.Duration)
}

// Result holds the captured output of a successful run.
type Result struct {
	Stdout  string
	Stderr  string
	Elapsed time.Duration
}

// Executor runs invocations as child processes of the media engine binary.
type Executor struct {
	// binary is the path to the ffmpeg binary. Defaults to "ffmpeg".
	binary         string
	defaultTimeout time.Duration
	sem            *semaphore.Weighted
	logger         *slog.Logger
	observer       Observer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDefaultTimeout sets the budget used when Run is called with a zero timeout.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithMaxConcurrent bounds the number of engine processes running at once.
func WithMaxConcurrent(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver reports every finished invocation to o.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		e.observer = o
	}
}

// NewExecutor creates a new Executor.
// If binary is empty, it defaults to "ffmpeg" (found via PATH).
func NewExecutor(binary string, opts ...ExecutorOption) *Executor {
	if binary == "" {
		binary = "ffmpeg"
	}
	e := &Executor{
		binary:         binary,
		defaultTimeout: DefaultTimeout,
		sem:            semaphore.NewWeighted(DefaultMaxConcurrent),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes inv. On a non-zero exit, a cancelled context or an expired
// timeout it returns a *ProcessingError carrying the tail of stderr. When the
// timeout fires the whole process group of the child is killed.
func (e *Executor) Run(ctx context.Context, inv Invocation, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Result{}, &ProcessingError{Name: inv.Name(), Args: inv.Args(), ExitCode: -1, Err: err}
	}
	defer e.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 - binary is set by the application; args are passed verbatim
	cmd := exec.CommandContext(runCtx, e.binary, inv.Args()...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout := newTailBuffer(stderrTailBytes)
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.logger.Debug("running media engine",
		slog.String("invocation", inv.Name()),
		slog.String("output", inv.Output()),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		perr := &ProcessingError{
			Name:     inv.Name(),
			Args:     inv.Args(),
			Stderr:   stderr.String(),
			ExitCode: exitCode(err),
			Err:      err,
		}
		switch {
		case ctx.Err() != nil:
			perr.Err = fmt.Errorf("media engine cancelled: %w", ctx.Err())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			perr.TimedOut = true
			perr.Err = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}

		status := "failed"
		if perr.TimedOut {
			status = "timeout"
		}
		e.observe(inv.Name(), status, elapsed)
		e.logger.Warn("media engine failed",
			slog.String("invocation", inv.Name()),
			slog.Int("exit_code", perr.ExitCode),
			slog.Bool("timed_out", perr.TimedOut),
			slog.Duration("elapsed", elapsed),
		)
		return Result{}, perr
	}

	e.observe(inv.Name(), "ok", elapsed)
	e.logger.Debug("media engine finished",
		slog.String("invocation", inv.Name()),
		slog.Duration("elapsed", elapsed),
	)

	return Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: elapsed,
	}, nil
}

func (e *Executor) observe(name, status string, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.ObserveInvocation(name, status, elapsed)
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// ProcessingError represents a failed engine run, including its stderr output.
type ProcessingError struct {
	Name     string
	Args     []string
	Stderr   string
	ExitCode int
	TimedOut bool
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("media engine error (%s): %v\nargs: %v\nstderr: %s", e.Name, e.Err, e.Args, e.Stderr)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)
		return n, nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return n, nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}
