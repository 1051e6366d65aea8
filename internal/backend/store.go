package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vango-dev/routedata/pkg/events"
)

// ErrNotFound is returned for unknown event ids.
var ErrNotFound = errors.New("backend: event not found")

// Store persists the whole event list as one document.
type Store interface {
	Load(ctx context.Context) ([]events.Event, error)
	Save(ctx context.Context, list []events.Event) error
}

// MemoryStore keeps events in memory.
type MemoryStore struct {
	mu   sync.Mutex
	list []events.Event
}

// NewMemoryStore returns a store seeded with list.
func NewMemoryStore(list ...events.Event) *MemoryStore {
	return &MemoryStore{list: append([]events.Event(nil), list...)}
}

func (s *MemoryStore) Load(ctx context.Context) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.list...), nil
}

func (s *MemoryStore) Save(ctx context.Context, list []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append([]events.Event(nil), list...)
	return nil
}

// FileStore keeps events in a JSON file shaped {"events": [...]}.
// A missing file reads as an empty list.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type document struct {
	Events []events.Event `json:"events"`
}

func (s *FileStore) Load(ctx context.Context) ([]events.Event, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backend: read %s: %w", s.path, err)
	}
	return decodeDocument(b)
}

func (s *FileStore) Save(ctx context.Context, list []events.Event) error {
	b, err := encodeDocument(list)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("backend: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	return nil
}

func decodeDocument(b []byte) ([]events.Event, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("backend: decode events: %w", err)
	}
	return doc.Events, nil
}

func encodeDocument(list []events.Event) ([]byte, error) {
	if list == nil {
		list = []events.Event{}
	}
	b, err := json.MarshalIndent(document{Events: list}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("backend: encode events: %w", err)
	}
	return b, nil
}
