// Package store is the object-storage seam. Writes are idempotent
// overwrites; the only concurrency guard the pipeline relies on is the
// exists check performed before scene-level work.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
}
