package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"guess_game/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SnapshotStore keeps game snapshots in Redis for the read path.
type SnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshotStore(rdb *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{rdb: rdb, ttl: ttl}
}

func (s *SnapshotStore) key(id uuid.UUID) string {
	return fmt.Sprintf("guessgame:%s:snapshot", id)
}

func (s *SnapshotStore) Save(ctx context.Context, id uuid.UUID, snap domain.GameSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(id), b, s.ttl).Err()
}

func (s *SnapshotStore) Load(ctx context.Context, id uuid.UUID) (domain.GameSnapshot, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GameSnapshot{}, false, nil
	}
	if err != nil {
		return domain.GameSnapshot{}, false, err
	}

	var snap domain.GameSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return domain.GameSnapshot{}, false, err
	}
	return snap, true, nil
}
