package question

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/classkit/live-quiz/internal/game"
)

const defaultCacheTTL = 5 * time.Minute

// Cache is a Redis-backed ListCache keeping category lookups off Postgres.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ListCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(category string, limit int) string {
	return fmt.Sprintf("qbank:%s:%d", category, limit)
}

func (c *Cache) Get(ctx context.Context, category string, limit int) ([]game.Question, error) {
	data, err := c.client.Get(ctx, c.key(category, limit)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var questions []game.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *Cache) Set(ctx context.Context, category string, limit int, questions []game.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(category, limit), data, c.ttl).Err()
}
