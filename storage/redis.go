package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "pdfedit:document:"

type RedisOptions struct {
	Addr     string
	DB       int
	Password string
	// TTL expires records; it is refreshed on every save. Zero keeps them.
	TTL time.Duration
}

// Redis stores each record as one JSON value. It suits short-lived
// sessions where an expiring cache is enough.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// redisRecord is the stored form. Source is base64 encoded by encoding/json.
type redisRecord struct {
	Source    []byte          `json:"source"`
	Snapshot  json.RawMessage `json:"snapshot"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// OpenRedis connects and pings.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Password: opts.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, opts.TTL), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	snap, err := encodeSnapshot(rec.Snapshot)
	if err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(redisRecord{Source: rec.Source, Snapshot: snap, UpdatedAt: rec.UpdatedAt})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+rec.ID, data, r.ttl).Err()
}

func (r *Redis) Load(ctx context.Context, id string) (Record, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var stored redisRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	snap, err := decodeSnapshot(stored.Snapshot)
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Source: stored.Source, Snapshot: snap, UpdatedAt: stored.UpdatedAt}, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
