package interfaces

import (
	"errors"

	"github.com/ternarybob/fulmen/internal/models"
)

// ErrPathEscape is returned when a path resolves outside the artifact root.
// This is a hard invariant against directory traversal.
var ErrPathEscape = errors.New("path escapes artifact root")

// ErrArtifactNotFound is returned when a read targets a missing file
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore exposes safe read/write primitives over the project result
// layout. Every path is relative; resolution that escapes the base
// directory fails with ErrPathEscape. Parent directories are created on
// write. Deleting a missing file succeeds silently.
type ArtifactStore interface {
	// SaveJSON writes value as indented JSON to relPath
	SaveJSON(relPath string, value interface{}) error

	// ReadJSON decodes the JSON file at relPath into dest
	ReadJSON(relPath string, dest interface{}) error

	// Delete removes the file at relPath. Idempotent.
	Delete(relPath string) error

	// Exists reports whether relPath names an existing file
	Exists(relPath string) bool

	// List returns the entries directly under relDir
	List(relDir string) ([]models.ArtifactInfo, error)

	// Stat returns metadata for the file at relPath
	Stat(relPath string) (*models.ArtifactInfo, error)

	// Resolve maps relPath to an absolute path under the root, enforcing
	// the escape check
	Resolve(relPath string) (string, error)

	// Root returns the absolute artifact root directory
	Root() string
}
