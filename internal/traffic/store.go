package traffic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const datasetKeyPrefix = "traffic:dataset"

// Store keeps one dataset per session in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore instantiates the store helper.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Save replaces the session dataset wholesale.
func (s *Store) Save(ctx context.Context, sessionID string, ds Dataset) error {
	if s == nil || s.client == nil {
		return errors.New("traffic store: client not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("traffic store: session id required")
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyDataset(sessionID), raw, s.ttl).Err()
}

// Load returns the session dataset. ok is false when none was uploaded.
func (s *Store) Load(ctx context.Context, sessionID string) (Dataset, bool, error) {
	if s == nil || s.client == nil || strings.TrimSpace(sessionID) == "" {
		return Dataset{}, false, nil
	}
	// GETEX reads and slides the expiry in one round trip.
	cmd := s.client.Get(ctx, keyDataset(sessionID))
	if s.ttl > 0 {
		cmd = s.client.GetEx(ctx, keyDataset(sessionID), s.ttl)
	}
	payload, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return Dataset{}, false, nil
	}
	if err != nil {
		return Dataset{}, false, err
	}
	var ds Dataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		return Dataset{}, false, err
	}
	return ds, true, nil
}

// Clear drops the session dataset.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if s == nil || s.client == nil || strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := s.client.Del(ctx, keyDataset(sessionID)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func keyDataset(sessionID string) string {
	return strings.Join([]string{datasetKeyPrefix, sessionID}, ":")
}
