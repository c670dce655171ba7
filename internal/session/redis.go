package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storyforge/config"
	"storyforge/internal/model"
)

const sessionTTL = 24 * time.Hour

// RedisStore keeps session state in redis so that flashes survive the
// redirect hop between API workers.
type RedisStore struct {
	client *redis.Client
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func flashKey(sessionID string) string {
	return fmt.Sprintf("session:%s:flash", sessionID)
}

func positionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:last_position", sessionID)
}

func (s *RedisStore) PushFlash(ctx context.Context, sessionID string, flash Flash) error {
	raw, err := json.Marshal(flash)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, flashKey(sessionID), raw)
	pipe.Expire(ctx, flashKey(sessionID), sessionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) PopFlashes(ctx context.Context, sessionID string) ([]Flash, error) {
	key := flashKey(sessionID)

	pipe := s.client.TxPipeline()
	items := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	raws, err := items.Result()
	if err != nil {
		return nil, err
	}

	flashes := make([]Flash, 0, len(raws))
	for _, raw := range raws {
		var f Flash
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			continue
		}
		flashes = append(flashes, f)
	}
	return flashes, nil
}

func (s *RedisStore) SetLastPosition(ctx context.Context, sessionID string, pos model.LastPosition) error {
	raw, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, positionKey(sessionID), raw, sessionTTL).Err()
}

func (s *RedisStore) LastPosition(ctx context.Context, sessionID string) (model.LastPosition, bool, error) {
	raw, err := s.client.Get(ctx, positionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.LastPosition{}, false, nil
	}
	if err != nil {
		return model.LastPosition{}, false, err
	}

	var pos model.LastPosition
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		return model.LastPosition{}, false, nil
	}
	return pos, true, nil
}
