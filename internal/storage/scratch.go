package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

const (
	tmpDirName      = "tmp"
	artifactDirName = "artifacts"
	defaultSuffix   = ".bin"
)

var suffixPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// Scratch hands out unique file paths under a managed storage root.
// Intermediate files live in <root>/tmp and outputs in <root>/artifacts.
// Names are built from random tokens only, never from request content.
type Scratch struct {
	root        string
	tmpDir      string
	artifactDir string
	logger      *slog.Logger
}

// NewScratch creates the storage root and its sub-directories if needed.
// If root is empty, a directory under os.TempDir() is used.
func NewScratch(root string, logger *slog.Logger) (*Scratch, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "transcode-api")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scratch{
		root:        root,
		tmpDir:      filepath.Join(root, tmpDirName),
		artifactDir: filepath.Join(root, artifactDirName),
		logger:      logger,
	}
	for _, dir := range []string{s.tmpDir, s.artifactDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	return s, nil
}

// Root returns the storage root.
func (s *Scratch) Root() string {
	return s.root
}

// TempDir returns the directory holding intermediate files.
func (s *Scratch) TempDir() string {
	return s.tmpDir
}

// ArtifactDir returns the directory holding finished outputs.
func (s *Scratch) ArtifactDir() string {
	return s.artifactDir
}

// Allocate returns an unused path in the temp directory. The file itself is
// not created.
func (s *Scratch) Allocate(suffix string) string {
	return filepath.Join(s.tmpDir, uuid.NewString()+cleanSuffix(suffix))
}

// AllocateOutput returns an unused path in the artifact directory.
func (s *Scratch) AllocateOutput(suffix string) string {
	return filepath.Join(s.artifactDir, uuid.NewString()+cleanSuffix(suffix))
}

// Release deletes the file at path. Missing files are ignored and any other
// failure is logged.
func (s *Scratch) Release(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("failed to release scratch file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// Purge empties the temp directory. It is meant to run once at startup to
// remove what a crashed process left behind.
func (s *Scratch) Purge() error {
	entries, err := os.ReadDir(s.tmpDir)
	if err != nil {
		return fmt.Errorf("read temp directory: %w", err)
	}
	for _, e := range entries {
		s.Release(filepath.Join(s.tmpDir, e.Name()))
	}
	if len(entries) > 0 {
		s.logger.Info("purged leftover scratch files", slog.Int("count", len(entries)))
	}
	return nil
}

// NewScope starts tracking allocations for one operation.
func (s *Scratch) NewScope() *Scope {
	return &Scope{scratch: s, kept: make(map[string]struct{})}
}

func cleanSuffix(suffix string) string {
	if suffixPattern.MatchString(suffix) {
		return suffix
	}
	return defaultSuffix
}

// Scope owns every path allocated through it. Close releases all of them
// except the ones handed over with Keep. A Scope is safe for concurrent use.
type Scope struct {
	scratch *Scratch

	mu     sync.Mutex
	paths  []string
	kept   map[string]struct{}
	closed bool
}

// Allocate returns a new intermediate path owned by the scope.
func (sc *Scope) Allocate(suffix string) string {
	return sc.track(sc.scratch.Allocate(suffix))
}

// AllocateOutput returns a new output path owned by the scope. It is released
// on Close unless Keep is called for it first.
func (sc *Scope) AllocateOutput(suffix string) string {
	return sc.track(sc.scratch.AllocateOutput(suffix))
}

func (sc *Scope) track(path string) string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.paths = append(sc.paths, path)
	return path
}

// Keep excludes path from release on Close.
func (sc *Scope) Keep(path string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.kept[path] = struct{}{}
}

// Paths returns a copy of every path allocated so far.
func (sc *Scope) Paths() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]string, len(sc.paths))
	copy(out, sc.paths)
	return out
}

// Close releases every allocated path that was not kept. Calling Close more
// than once is a no-op.
func (sc *Scope) Close() {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		return
	}
	sc.closed = true
	var release []string
	for _, p := range sc.paths {
		if _, ok := sc.kept[p]; !ok {
			release = append(release, p)
		}
	}
	sc.paths = nil
	sc.mu.Unlock()

	for _, p := range release {
		sc.scratch.Release(p)
	}
}
