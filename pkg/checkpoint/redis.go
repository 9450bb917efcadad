package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/nodeiter"
)

// RedisOptions configures a RedisStore
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix defaults to "igcrawler:resume"
	Prefix string
	Base   string
	// TTL of zero keeps snapshots until they are deleted
	TTL    time.Duration
	Logger logger.Logger
}

// RedisStore keeps snapshot envelopes in redis
type RedisStore struct {
	client *redis.Client
	prefix string
	base   string
	ttl    time.Duration
	log    logger.Logger
}

// NewRedisStore connects to redis and checks the connection
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := NewRedisStoreFromClient(client, opts.Prefix, opts.TTL, opts.Logger)
	s.base = opts.Base
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "igcrawler:resume"
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log,
	}
}

// ForTarget returns a store sharing s's client whose keys carry base
func (s *RedisStore) ForTarget(base string) nodeiter.SnapshotStore {
	c := *s
	c.base = base
	return &c
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// PathFor returns the key {prefix}:{base}:{magic}
func (s *RedisStore) PathFor(magic string) string {
	return s.prefix + ":" + s.base + ":" + magic
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*nodeiter.FrozenIterator, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.New(errs.ErrorTypeInvalidArgument, "no snapshot at %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decode(data)
}

func (s *RedisStore) Save(ctx context.Context, key string, frozen nodeiter.FrozenIterator) error {
	data, err := encode(frozen)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	s.log.DebugWithFields("Snapshot saved", map[string]interface{}{
		"key":         key,
		"total_index": frozen.TotalIndex,
		"ttl":         s.ttl.String(),
	})
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
