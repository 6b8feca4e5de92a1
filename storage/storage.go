// Package storage persists document state between sessions. A record is the
// source file plus the latest snapshot, keyed by the document fingerprint.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdfedit/model"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidID    = errors.New("document id is empty")
	ErrUnknownStore = errors.New("unknown storage backend")
)

// Record is one saved document.
type Record struct {
	ID        string
	Source    []byte
	Snapshot  model.Snapshot
	UpdatedAt time.Time
}

// Repository stores records. Save replaces any record with the same ID.
type Repository interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Backend names a Repository implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

type Options struct {
	Backend     Backend
	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	// TTL expires Redis records. Zero keeps them forever.
	TTL time.Duration
}

// Open builds the repository named by opts.Backend and checks that it is
// reachable.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL)
	case BackendRedis:
		return OpenRedis(ctx, RedisOptions{Addr: opts.RedisAddr, DB: opts.RedisDB, Password: opts.RedisPass, TTL: opts.TTL})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStore, opts.Backend)
}

func encodeSnapshot(s model.Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (model.Snapshot, error) {
	var s model.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

func validate(rec Record) error {
	if rec.ID == "" {
		return ErrInvalidID
	}
	return nil
}
