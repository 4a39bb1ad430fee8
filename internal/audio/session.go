package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownSession is returned for handles the store never issued.
var ErrUnknownSession = errors.New("unknown audio session")

// Session is one archived capture.
type Session struct {
	ID          string
	Path        string
	DurationMs  int64
	SampleCount int64
	// RMS is the energy of the whole session. It is only known for sessions
	// captured here; imported files leave Measured false.
	RMS      float64
	Measured bool
}

// SessionStore maps session handles to archived audio files.
type SessionStore struct {
	dir string

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionStore keeps session audio under dir, creating it if needed.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions dir: %w", err)
	}

	return &SessionStore{dir: dir, sessions: map[string]Session{}}, nil
}

// Dir is where session audio is written.
func (s *SessionStore) Dir() string {
	return s.dir
}

// NewPath reserves a fresh handle and the file it should be written to.
func (s *SessionStore) NewPath() (id, path string) {
	id = uuid.NewString()
	return id, filepath.Join(s.dir, id+".mp3")
}

// Register records a finished capture.
func (s *SessionStore) Register(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess
}

// RegisterFile imports an existing audio file as a session.
func (s *SessionStore) RegisterFile(path string) (Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Session{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Session{}, fmt.Errorf("failed to stat audio file: %w", err)
	}
	if info.IsDir() {
		return Session{}, fmt.Errorf("%s is a directory", path)
	}

	sess := Session{ID: uuid.NewString(), Path: abs}
	s.Register(sess)

	return sess, nil
}

// Lookup resolves a handle.
func (s *SessionStore) Lookup(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	return sess, nil
}
