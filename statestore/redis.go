package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore provides a Redis-backed implementation of the Store interface.
// Each transcript is a list of JSON-encoded exchanges; a sorted set indexes
// conversations by last activity. Keys expire after the configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for transcripts.
// Default is 24 hours. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys.
// Default is "sydney".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed transcript store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(24 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultTTLHours * time.Hour,
		prefix: "sydney",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Append pushes an exchange onto the conversation's list and refreshes the index.
func (s *RedisStore) Append(ctx context.Context, conversationID string, ex Exchange) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("failed to marshal exchange: %w", err)
	}

	key := s.transcriptKey(conversationID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(time.Now().UnixMilli()), Member: conversationID})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, s.indexKey(), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Load reads every exchange of a conversation.
func (s *RedisStore) Load(ctx context.Context, conversationID string) (*Transcript, error) {
	if conversationID == "" {
		return nil, ErrInvalidID
	}

	items, err := s.client.LRange(ctx, s.transcriptKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	t := &Transcript{ConversationID: conversationID, Exchanges: make([]Exchange, 0, len(items))}
	for _, item := range items {
		var ex Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			return nil, fmt.Errorf("failed to unmarshal exchange: %w", err)
		}
		t.Exchanges = append(t.Exchanges, ex)
	}

	score, err := s.client.ZScore(ctx, s.indexKey(), conversationID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis zscore failed: %w", err)
	}
	if score > 0 {
		t.UpdatedAt = time.UnixMilli(int64(score))
	}
	return t, nil
}

// Delete removes a transcript and its index entry.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrInvalidID
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.transcriptKey(conversationID))
	pipe.ZRem(ctx, s.indexKey(), conversationID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns conversation IDs, most recently updated first.
func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}
	return page(ids, opts), nil
}

func (s *RedisStore) transcriptKey(id string) string {
	return fmt.Sprintf("%s:transcript:%s", s.prefix, id)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":transcripts"
}
