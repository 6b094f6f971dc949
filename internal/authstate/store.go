// File: internal/authstate/store.go

package authstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/observability"
)

// ErrStateNotFound indicates no persisted session exists for the platform.
// Callers treat this as "run interactive login", not as a failure.
var ErrStateNotFound = errors.New("no persisted session state found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CorruptStateError wraps a parse failure for a state file that exists but
// cannot be decoded. The path is carried so the operator knows which file to
// delete or re-capture.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("session state file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// Store persists session documents as one JSON file per platform under a
// dedicated state directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: observability.GetLogger().Named("statestore"),
	}, nil
}

// Path returns the state file path for a platform.
func (s *Store) Path(platform string) string {
	return filepath.Join(s.dir, platform+".json")
}

// Load reads and decodes the persisted session for a platform. A missing file
// yields ErrStateNotFound; an unreadable or undecodable file yields a
// *CorruptStateError so the two cases stay distinguishable.
func (s *Store) Load(platform string) (*Session, error) {
	path := s.Path(platform)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read session state %s: %w", path, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &CorruptStateError{Path: path, Err: err}
	}

	s.logger.Debug("Loaded session state",
		zap.String("platform", platform),
		zap.Int("cookies", len(session.Cookies)),
		zap.Int("origins", len(session.Origins)))
	return &session, nil
}

// Save writes the session document atomically: the JSON is written to a
// temporary file in the same directory and renamed over the target, so a
// crash mid-write never leaves a truncated state file behind. Each save is a
// full replacement of any previous document for the platform.
func (s *Store) Save(platform string, session *Session) error {
	path := s.Path(platform)
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, platform+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session state %s: %w", path, err)
	}

	s.logger.Info("Saved session state",
		zap.String("platform", platform),
		zap.String("path", path),
		zap.Int("cookies", len(session.Cookies)),
		zap.Int("origins", len(session.Origins)))
	return nil
}
