package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brainwavecollective/vibe-eyes/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultStateKey = "vibe:state"
	// A checkpoint older than this describes a stale session and is left to expire.
	stateKeyTTL = 24 * time.Hour
)

// StateStore checkpoints the blender state as a JSON document under one key.
type StateStore struct {
	rdb *goredis.Client
	key string
}

var _ domain.StateStore = (*StateStore)(nil)

// NewStateStore stores state under key, or "vibe:state" when key is empty.
func NewStateStore(rdb *goredis.Client, key string) *StateStore {
	if key == "" {
		key = defaultStateKey
	}
	return &StateStore{rdb: rdb, key: key}
}

func (s *StateStore) SaveState(ctx context.Context, state domain.BlenderState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, stateKeyTTL).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// LoadState returns (nil, false, nil) when no checkpoint exists.
func (s *StateStore) LoadState(ctx context.Context) (*domain.BlenderState, bool, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load state: %w", err)
	}

	var state domain.BlenderState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, true, nil
}
