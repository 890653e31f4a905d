package schemacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/lauacosta/GIS-TPI/internal/core/model"
	"github.com/lauacosta/GIS-TPI/internal/core/observability"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

// Redis shares schemas between viewer instances.
type Redis struct {
	rdb       *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

func NewRedis(ctx context.Context, addr string, ttl, opTimeout time.Duration, opts ...Option) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &Redis{rdb: rdb, ttl: ttl, opTimeout: opTimeout}, nil
}

func (r *Redis) Get(ctx context.Context, k Key) (model.FeatureTypeSchema, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	b, err := r.rdb.Get(ctx, k.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.IncSchemaCache("redis", false)
		return model.FeatureTypeSchema{}, false, nil
	}
	if err != nil {
		return model.FeatureTypeSchema{}, false, fmt.Errorf("redis GET %q: %w", k.String(), err)
	}
	var s model.FeatureTypeSchema
	if err := json.Unmarshal(b, &s); err != nil {
		return model.FeatureTypeSchema{}, false, fmt.Errorf("decode cached schema: %w", err)
	}
	observability.IncSchemaCache("redis", true)
	return s, true, nil
}

func (r *Redis) Set(ctx context.Context, k Key, s model.FeatureTypeSchema) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	if err := r.rdb.Set(ctx, k.String(), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %q: %w", k.String(), err)
	}
	return nil
}

// DropSession removes every schema cached for one session.
func (r *Redis) DropSession(ctx context.Context, session string) error {
	if session == "" {
		return nil
	}
	pattern := sessionPrefix(session) + "*"
	iter := r.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis SCAN %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	if err := r.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
