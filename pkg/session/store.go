package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a duplicate id.
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionTerminal is returned when an update would move a
	// session that is already in a terminal state. A poll in flight
	// when a session is cancelled loses to the cancellation.
	ErrSessionTerminal = errors.New("session is in a terminal state")
)

// Store is the durable mapping from session id to session state. It
// must survive process restarts and serialize concurrent writers.
type Store interface {
	Create(ctx context.Context, s *SwapSession) error
	Get(ctx context.Context, id string) (*SwapSession, error)
	Update(ctx context.Context, s *SwapSession) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*SwapSession, error)
	ListByDirection(ctx context.Context, d Direction) ([]*SwapSession, error)
	// ListActive returns sessions not yet in a terminal state.
	ListActive(ctx context.Context) ([]*SwapSession, error)
}

const DefaultStoreFileName = ".zecswap-sessions.json"

// FileStore persists sessions as a single JSON file, written atomically
// via a temp file and rename. Amounts round-trip exactly because they
// are encoded as strings.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	sessions map[string]*SwapSession
}

type fileStorePayload struct {
	Version  int                     `json:"version"`
	Sessions map[string]*SwapSession `json:"sessions"`
}

// NewFileStore opens (or lazily creates) the store file.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStoreFileName)
	}

	store := &FileStore{
		filePath: filePath,
		sessions: make(map[string]*SwapSession),
	}
	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load sessions: %w", err)
		}
	}
	return store, nil
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return err
	}

	var payload fileStorePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	f.sessions = payload.Sessions
	if f.sessions == nil {
		f.sessions = make(map[string]*SwapSession)
	}
	return nil
}

// saveLocked writes the store file. Callers hold f.mu.
func (f *FileStore) saveLocked() error {
	payload := fileStorePayload{Version: 1, Sessions: f.sessions}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := f.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write sessions: %w", err)
	}
	if err := os.Rename(tempFile, f.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Create implements Store.
func (f *FileStore) Create(_ context.Context, s *SwapSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.sessions[s.ID]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.ID)
	}
	f.sessions[s.ID] = s.Clone()
	return f.saveLocked()
}

// Get implements Store. The returned session is a copy.
func (f *FileStore) Get(_ context.Context, id string) (*SwapSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s, exists := f.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

// Update implements Store. An update that would move a session out of
// a terminal state is rejected, so a late poll can never resurrect a
// cancelled or finished session.
func (f *FileStore) Update(_ context.Context, s *SwapSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, exists := f.sessions[s.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}
	if existing.Status.Terminal() && existing.Status != s.Status {
		return fmt.Errorf("%w: %s is %s", ErrSessionTerminal, s.ID, existing.Status)
	}

	f.sessions[s.ID] = s.Clone()
	return f.saveLocked()
}

// Delete implements Store.
func (f *FileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.sessions[id]; !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(f.sessions, id)
	return f.saveLocked()
}

// List implements Store.
func (f *FileStore) List(_ context.Context) ([]*SwapSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*SwapSession, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}

// ListByDirection implements Store.
func (f *FileStore) ListByDirection(_ context.Context, d Direction) ([]*SwapSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*SwapSession, 0)
	for _, s := range f.sessions {
		if s.Direction == d {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

// ListActive implements Store.
func (f *FileStore) ListActive(_ context.Context) ([]*SwapSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*SwapSession, 0)
	for _, s := range f.sessions {
		if !s.Status.Terminal() {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

// FilePath returns the backing file path.
func (f *FileStore) FilePath() string {
	return f.filePath
}
