// Package artifact indexes finished outputs so they can be served for download.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned when no artifact is registered under an id.
	ErrNotFound = errors.New("artifact not found")
	// ErrAlreadyExists is returned when an id is registered twice.
	ErrAlreadyExists = errors.New("artifact already exists")
)

// Artifact is a finished output file. It is written once and never mutated.
type Artifact struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	RemoteURL string    `json:"remoteUrl,omitempty"`
}

// Store maps artifact ids to local files.
type Store interface {
	// Put registers a. Returns ErrAlreadyExists if the id is taken.
	Put(ctx context.Context, a Artifact) error

	// Get returns the artifact registered under id.
	// Returns ErrNotFound if there is none.
	Get(ctx context.Context, id string) (Artifact, error)
}

// FromFile describes the file at path as an artifact. The id is the file's
// base name, which the scratch space makes unique.
func FromFile(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("artifact %s is not a regular file", path)
	}
	return Artifact{
		ID:        filepath.Base(path),
		Path:      path,
		Size:      info.Size(),
		CreatedAt: time.Now().UTC(),
	}, nil
}
