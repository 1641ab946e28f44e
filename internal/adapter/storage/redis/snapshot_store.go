package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payment-intent-engine/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// SnapshotStore mirrors the latest market snapshot in Redis so a restarted
// or sampling-impaired instance can reuse a sibling's reading.
type SnapshotStore struct {
	client goredis.UniversalClient
	key    string
}

// NewSnapshotStore creates a Redis snapshot store.
func NewSnapshotStore(client goredis.UniversalClient) *SnapshotStore {
	return &SnapshotStore{client: client, key: "market:snapshot"}
}

// Save overwrites the stored snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snapshot domain.MarketSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode market snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set market snapshot: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot, or nil if none was saved.
func (s *SnapshotStore) Latest(ctx context.Context) (*domain.MarketSnapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get market snapshot: %w", err)
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode market snapshot: %w", err)
	}
	return &snap, nil
}
