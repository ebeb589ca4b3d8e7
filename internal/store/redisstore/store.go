// Package redisstore implements the session store on Redis: one JSON
// record per session, a join-code index, a per-session write lock, and a
// pub/sub channel carrying full snapshots as the change stream.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/classkit/live-quiz/internal/game"
)

const (
	defaultLockTTL    = 10 * time.Second
	lockRetryInterval = 25 * time.Millisecond
	lockAttempts      = 40
)

// Store persists sessions in Redis. Change subscribers receive every
// committed snapshot via pub/sub; redelivery after reconnects is possible
// and consumers must be idempotent.
type Store struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	logger  zerolog.Logger
}

var _ game.Store = (*Store)(nil)

// NewStore creates a Redis-backed session store. ttl bounds how long a
// finished session's record survives; zero keeps records indefinitely.
func NewStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		client:  client,
		ttl:     ttl,
		lockTTL: defaultLockTTL,
		logger:  logger.With().Str("component", "session_store").Logger(),
	}
}

func sessionKey(id string) string { return "session:" + id }
func codeKey(code string) string  { return "session:code:" + code }
func eventsKey(id string) string  { return "session:events:" + id }
func lockKey(id string) string    { return "session:lock:" + id }

func (st *Store) Create(ctx context.Context, s *game.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := st.client.Set(ctx, sessionKey(s.ID), data, st.ttl).Err(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := st.client.Set(ctx, codeKey(s.JoinCode), s.ID, st.ttl).Err(); err != nil {
		return fmt.Errorf("index join code: %w", err)
	}
	st.publish(ctx, s.ID, data)
	return nil
}

func (st *Store) Get(ctx context.Context, id string) (*game.Session, error) {
	data, err := st.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s game.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Update applies fn under the session's write lock and publishes the
// committed snapshot. If fn returns an error nothing is written.
func (st *Store) Update(ctx context.Context, id string, fn func(*game.Session) error) (*game.Session, error) {
	unlock, err := st.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			st.logger.Warn().Err(uerr).Str("session_id", id).Msg("unlock failed")
		}
	}()

	s, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := st.client.Set(ctx, sessionKey(id), data, st.ttl).Err(); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}
	st.publish(ctx, id, data)
	return s, nil
}

func (st *Store) FindByJoinCode(ctx context.Context, code string) (*game.Session, error) {
	id, err := st.client.Get(ctx, codeKey(code)).Result()
	if err == redis.Nil {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read join code: %w", err)
	}
	s, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status == game.StatusFinished {
		// Finished sessions are history; their codes are reusable.
		if derr := st.client.Del(ctx, codeKey(code)).Err(); derr != nil {
			st.logger.Debug().Err(derr).Str("join_code", code).Msg("stale code cleanup failed")
		}
		return nil, game.ErrSessionNotFound
	}
	return s, nil
}

func (st *Store) Subscribe(ctx context.Context, id string, fn func(*game.Session)) (func(), error) {
	initial, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sub := st.client.Subscribe(ctx, eventsKey(id))
	// Force the subscription to be established before returning so no
	// change between the initial snapshot and now is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe session: %w", err)
	}

	fn(initial)

	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			var s game.Session
			if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
				st.logger.Warn().Err(err).Str("session_id", id).Msg("bad session event payload")
				continue
			}
			fn(&s)
		}
	}()

	return func() {
		once.Do(func() {
			if err := sub.Close(); err != nil {
				st.logger.Debug().Err(err).Str("session_id", id).Msg("pubsub close failed")
			}
			<-done
		})
	}, nil
}

func (st *Store) publish(ctx context.Context, id string, data []byte) {
	if err := st.client.Publish(ctx, eventsKey(id), data).Err(); err != nil {
		st.logger.Warn().Err(err).Str("session_id", id).Msg("publish session event failed")
	}
}

// lock acquires the per-session write lock, polling briefly if another
// writer holds it. The unlock script only deletes the lock it owns.
func (st *Store) lock(ctx context.Context, id string) (func() error, error) {
	key := lockKey(id)
	owner := uuid.NewString()

	var acquired bool
	for i := 0; i < lockAttempts; i++ {
		ok, err := st.client.SetNX(ctx, key, owner, st.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			acquired = true
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
	if !acquired {
		return nil, errors.New("session lock held too long")
	}

	unlock := func() error {
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		return st.client.Eval(context.Background(), script, []string{key}, owner).Err()
	}
	return unlock, nil
}
