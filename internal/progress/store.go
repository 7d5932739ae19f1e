package progress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/snonux/bookmaker/internal"
)

// State is the persisted progress of one document. Processed equals the
// number of completed units and never exceeds Total.
type State struct {
	Key       string
	Total     int
	Processed int
	Completed map[int]string // unit index -> translated text
	Failed    map[int]string // unit index -> last error
	UpdatedAt time.Time
}

// NewState returns an empty state for key
func NewState(key string) *State {
	return &State{
		Key:       key,
		Completed: make(map[int]string),
		Failed:    make(map[int]string),
	}
}

// Store persists run state. Every method call is atomic; a crash loses at
// most the unit that was being written.
type Store interface {
	Load(ctx context.Context, key string) (*State, error)
	MarkCompleted(ctx context.Context, key string, index int, translated string, total int) error
	MarkFailed(ctx context.Context, key string, index int, reason string, total int) error
	Reset(ctx context.Context, key string) error
	Close() error
}

// DocumentKey identifies a document for resume: the SHA-256 of its content
// combined with the target language and render mode, so renaming the file
// keeps its progress while changing language or mode starts over
func DocumentKey(path, language, mode string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	fmt.Fprintf(h, "\x00%s\x00%s", language, mode)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DefaultPath returns the default database location inside the state dir
func DefaultPath() (string, error) {
	dir, err := internal.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "progress.db"), nil
}

func checkIndex(index, total int) error {
	if index < 0 || index >= total {
		return fmt.Errorf("unit index %d out of range [0, %d)", index, total)
	}
	return nil
}

// MemoryStore keeps state in memory; used in tests and for runs without a
// state database
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

// Load returns a copy of the state for key, empty if unknown
func (m *MemoryStore) Load(ctx context.Context, key string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := NewState(key)
	if s, ok := m.states[key]; ok {
		out.Total = s.Total
		out.Processed = s.Processed
		out.UpdatedAt = s.UpdatedAt
		for i, v := range s.Completed {
			out.Completed[i] = v
		}
		for i, v := range s.Failed {
			out.Failed[i] = v
		}
	}
	return out, nil
}

// MarkCompleted records a translated unit
func (m *MemoryStore) MarkCompleted(ctx context.Context, key string, index int, translated string, total int) error {
	if err := checkIndex(index, total); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(key)
	s.Total = total
	s.Completed[index] = translated
	delete(s.Failed, index)
	s.Processed = len(s.Completed)
	s.UpdatedAt = time.Now()
	return nil
}

// MarkFailed records a unit failure unless the unit is already completed
func (m *MemoryStore) MarkFailed(ctx context.Context, key string, index int, reason string, total int) error {
	if err := checkIndex(index, total); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state(key)
	s.Total = total
	if _, done := s.Completed[index]; !done {
		s.Failed[index] = reason
	}
	s.UpdatedAt = time.Now()
	return nil
}

// Reset forgets all state of key
func (m *MemoryStore) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, key)
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) state(key string) *State {
	s, ok := m.states[key]
	if !ok {
		s = NewState(key)
		m.states[key] = s
	}
	return s
}
