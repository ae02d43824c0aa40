// Package artifacts provides safe filesystem primitives over the project
// result layout. All paths are relative to a fixed root; any path that
// resolves outside it is rejected before touching the disk. Writes to the
// same relative path are serialized so concurrent jobs never interleave
// partial JSON.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
	"github.com/ternarybob/fulmen/internal/models"
)

// Service implements ArtifactStore rooted at a single directory
type Service struct {
	root   string
	logger arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-path write serialization
}

// NewService creates an artifact store rooted at root. The directory is
// created if missing and the path is resolved to absolute so later escape
// checks compare like with like.
func NewService(root string, logger arbor.ILogger) (*Service, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving artifact root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root: %w", err)
	}

	return &Service{
		root:   abs,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the absolute artifact root directory
func (s *Service) Root() string { return s.root }

// Resolve maps relPath to an absolute path under the root. Any input that
// cleans to a path outside the root fails with ErrPathEscape.
func (s *Service) Resolve(relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) {
		return "", interfaces.ErrPathEscape
	}

	abs := filepath.Join(s.root, relPath)
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", interfaces.ErrPathEscape
	}
	return abs, nil
}

// SaveJSON writes value as indented JSON to relPath, creating parent
// directories as needed. Concurrent saves to the same path are serialized.
func (s *Service) SaveJSON(relPath string, value interface{}) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding artifact %s: %w", relPath, err)
	}

	lock := s.pathLock(abs)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", relPath, err)
	}

	s.logger.Debug().Str("path", relPath).Int("bytes", len(data)).Msg("Artifact saved")
	return nil
}

// ReadJSON decodes the JSON file at relPath into dest
func (s *Service) ReadJSON(relPath string, dest interface{}) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return interfaces.ErrArtifactNotFound
		}
		return fmt.Errorf("reading artifact %s: %w", relPath, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decoding artifact %s: %w", relPath, err)
	}
	return nil
}

// Delete removes the file at relPath. Deleting a missing file succeeds.
func (s *Service) Delete(relPath string) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}

	lock := s.pathLock(abs)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting artifact %s: %w", relPath, err)
	}
	return nil
}

// Exists reports whether relPath names an existing regular file
func (s *Service) Exists(relPath string) bool {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// List returns the entries directly under relDir. A missing directory
// reads as empty rather than an error, since result directories appear
// lazily as workers produce output.
func (s *Service) List(relDir string) ([]models.ArtifactInfo, error) {
	abs, err := s.Resolve(relDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.ArtifactInfo{}, nil
		}
		return nil, fmt.Errorf("listing artifacts in %s: %w", relDir, err)
	}

	infos := make([]models.ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, models.ArtifactInfo{
			Path:    filepath.ToSlash(filepath.Join(relDir, entry.Name())),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
			IsDir:   entry.IsDir(),
		})
	}
	return infos, nil
}

// Stat returns metadata for the file at relPath
func (s *Service) Stat(relPath string) (*models.ArtifactInfo, error) {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, interfaces.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("stat artifact %s: %w", relPath, err)
	}

	return &models.ArtifactInfo{
		Path:    filepath.ToSlash(relPath),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
	}, nil
}

// pathLock returns the mutex serializing writes to one absolute path.
// Locks are never reclaimed; the path space is small and stable.
func (s *Service) pathLock(abs string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[abs]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[abs] = lock
	}
	return lock
}

// Ensure Service implements ArtifactStore interface
var _ interfaces.ArtifactStore = (*Service)(nil)
