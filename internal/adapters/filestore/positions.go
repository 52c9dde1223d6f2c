package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// PositionStore implements ports.PositionStore on a single JSON file holding
// the live-position set keyed by position id. Every mutation rewrites the
// whole file atomically (temp file + rename), so a crash never leaves a
// half-written state behind.
type PositionStore struct {
	path   string
	logger ports.Logger

	mu        sync.Mutex
	positions map[string]*domain.Position
}

// Config holds configuration for the file-backed position store.
type Config struct {
	Path   string
	Logger ports.Logger
}

// NewPositionStore creates the store and loads any existing file.
func NewPositionStore(cfg Config) (*PositionStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for position store")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("file path is required for position store")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(cfg.Path), err)
	}

	s := &PositionStore{
		path:      cfg.Path,
		logger:    cfg.Logger,
		positions: make(map[string]*domain.Position),
	}
	if err := s.loadFile(); err != nil {
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Position store initialized", map[string]interface{}{
		"path": cfg.Path, "positions": len(s.positions),
	})
	return s, nil
}

func (s *PositionStore) loadFile() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // First run, nothing persisted yet
		}
		return fmt.Errorf("failed to read position file '%s': %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	var loaded map[string]*domain.Position
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("position file '%s': %w: %v", s.path, ports.ErrStoreCorrupted, err)
	}
	s.positions = loaded
	return nil
}

// flush writes the full live set to disk. Caller must hold s.mu.
func (s *PositionStore) flush() error {
	data, err := json.MarshalIndent(s.positions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write position file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace position file: %w", err)
	}
	return nil
}

// Save writes or overwrites one position keyed by its id.
func (s *PositionStore) Save(ctx context.Context, pos *domain.Position) error {
	if pos == nil || pos.ID == "" {
		return fmt.Errorf("position with non-empty id is required: %w", ports.ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[pos.ID] = pos.Clone()
	if err := s.flush(); err != nil {
		return err
	}
	s.logger.Debug(ctx, "Position saved", map[string]interface{}{"positionID": pos.ID, "status": pos.Status})
	return nil
}

// Delete removes a position from the live set.
func (s *PositionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[id]; !ok {
		return fmt.Errorf("position %s: %w", id, ports.ErrNotFound)
	}
	delete(s.positions, id)
	if err := s.flush(); err != nil {
		return err
	}
	s.logger.Debug(ctx, "Position deleted", map[string]interface{}{"positionID": id})
	return nil
}

// LoadAll returns every persisted live position, ordered by entry time.
func (s *PositionStore) LoadAll(ctx context.Context) ([]*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, pos.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out, nil
}
